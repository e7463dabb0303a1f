package signaling

import (
	"github.com/pion/datachannel"

	"github.com/arzzra/rtcengine/pkg/rtcbase"
)

// DataChannelInit — см. spec.md §6 create_data_channel. maxRetransmits и
// maxPacketLifeTime — взаимоисключающие частично-надёжные режимы RFC 8831
// §6.1; негативное значение/оба набора проверяются в CreateDataChannel.
type DataChannelInit struct {
	Ordered           bool
	MaxRetransmits    *uint16
	MaxPacketLifeTime *uint16
	Negotiated        bool
	ID                *rtcbase.DataChannelId
	Protocol          string
	Priority          uint16
}

// DefaultDataChannelInit mirrors the W3C default: ordered, fully reliable.
func DefaultDataChannelInit() DataChannelInit {
	return DataChannelInit{Ordered: true, Priority: datachannel.ChannelPriorityNormal}
}

func (i DataChannelInit) channelType() datachannel.ChannelType {
	switch {
	case i.MaxPacketLifeTime != nil && i.Ordered:
		return datachannel.ChannelTypePartialReliableTimed
	case i.MaxPacketLifeTime != nil && !i.Ordered:
		return datachannel.ChannelTypePartialReliableTimedUnordered
	case i.MaxRetransmits != nil && i.Ordered:
		return datachannel.ChannelTypePartialReliableRexmit
	case i.MaxRetransmits != nil && !i.Ordered:
		return datachannel.ChannelTypePartialReliableRexmitUnordered
	case !i.Ordered:
		return datachannel.ChannelTypeReliableUnordered
	default:
		return datachannel.ChannelTypeReliable
	}
}

func (i DataChannelInit) validate() error {
	if i.MaxRetransmits != nil && i.MaxPacketLifeTime != nil {
		return errInvalidParameter("max_retransmits and max_packet_life_time are mutually exclusive")
	}
	return nil
}

// DataChannelHandle — дескриптор канала, возвращаемый create_data_channel;
// Send/Close делегируют в DataChannel-слой конвейера, State отражает
// последнее известное orchestrator-у состояние (синхронизируется событиями
// EventDataChannelOpen/Close, см. PeerConnection.routeEvent).
type DataChannelHandle struct {
	ID       rtcbase.DataChannelId
	Label    string
	Init     DataChannelInit
	State    rtcbase.DataChannelState
}
