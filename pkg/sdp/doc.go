// Package sdp строит и разбирает SDP offer/answer (RFC 8866) поверх
// github.com/pion/sdp/v3, добавляя атрибуты, специфичные для WebRTC
// offer/answer (RFC 9429): a=mid, a=rtcp-fb, a=extmap, a=rid,
// a=fingerprint, a=ice-ufrag/pwd, a=candidate, a=ssrc-group. a=simulcast
// не пишется и не разбирается: симулкаст передаётся только через a=rid и
// a=ssrc-group:SIM.
package sdp
