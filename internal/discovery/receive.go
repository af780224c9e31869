package discovery

import (
	"context"

	"iotfabric/internal/model"
)

const metaServiceName = "_services._dns-sd._udp.local"

func (e *Engine) receiveLoop(ctx context.Context) {
	defer e.wg.Done()

	buf := make([]byte, MaxDatagramSize)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, src, err := e.transport.receive(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			e.log.Warn("discovery: datagram read failed", "error", err)
			continue
		}

		datagram := make([]byte, n)
		copy(datagram, buf[:n])

		if e.sent.isEcho(datagram) {
			continue
		}

		body, err := model.DecodeDatagramFrame(datagram)
		if err != nil {
			e.log.Warn("discovery: malformed datagram framing, dropped", "src", src, "error", err)
			continue
		}

		p, err := model.DecodeMDNSPacket(body)
		if err != nil {
			e.log.Warn("discovery: malformed packet, dropped", "src", src, "error", err)
			continue
		}

		e.notifySubscribers(p, src)

		if p.Type == model.PacketQueryRequest {
			e.handleQuery(p)
		}
	}
}

// handleQuery answers an inbound QueryRequest with the records of every
// locally-registered service that matches each question, per SPEC §4.1.
// Responses go to the multicast group, never unicast.
func (e *Engine) handleQuery(p model.MDNSPacket) {
	for _, q := range p.Questions {
		matches := e.matchingLocalServices(q.Name)
		if len(matches) == 0 {
			continue
		}

		var answers, additional []model.MDNSRecord
		for _, info := range matches {
			a, adds := model.BuildAnnouncementRecords(info, false)
			answers = append(answers, a...)
			additional = append(additional, adds...)
		}

		resp := model.MDNSPacket{
			TransactionID: newTransactionID(),
			Timestamp:     e.clock.Now().UTC(),
			Type:          model.PacketQueryResponse,
			Answers:       answers,
			Additional:    additional,
		}
		if err := e.send(resp); err != nil {
			e.log.Warn("discovery: query response send failed", "error", err)
		}
	}
}

func (e *Engine) matchingLocalServices(questionName string) []model.ServiceInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []model.ServiceInfo
	for _, rs := range e.services {
		if questionName == metaServiceName || questionName == rs.info.ServiceType {
			out = append(out, rs.info)
		}
	}
	return out
}
