package ambeo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/gray-logic-ambeo/internal/device"
	"github.com/nerrad567/gray-logic-ambeo/internal/infrastructure/mqtt"
)

// handleRequest answers a request on its response topic.
func (b *Bridge) handleRequest(topic string, payload []byte) error {
	var req RequestMessage
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("parse request: %w", err)
	}
	if req.RequestID == "" {
		req.RequestID = mqtt.LastSegment(topic)
	}

	resp := b.HandleRequest(b.ctx, req)

	respPayload, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	if err := b.mqtt.Publish(mqtt.Topics{}.Response(req.RequestID), respPayload, qosAtLeastOnce, false); err != nil {
		return fmt.Errorf("publish response: %w", err)
	}
	return nil
}

// HandleRequest runs a request action and returns its response.
func (b *Bridge) HandleRequest(ctx context.Context, req RequestMessage) ResponseMessage {
	b.logInfo("received request",
		"request_id", req.RequestID,
		"action", req.Action,
		"soundbar", req.SoundbarID)

	var (
		data map[string]any
		err  error
	)
	switch req.Action {
	case ActionReadState:
		data, err = b.requestReadState(req)
	case ActionRefresh:
		data, err = b.requestRefresh(ctx, req)
	case ActionSetEndpoint:
		data, err = b.requestSetEndpoint(ctx, req)
	case ActionReloadSources:
		data, err = b.requestReloadSources(ctx, req)
	default:
		return newResponseError(req, ErrCodeInvalidCommand, fmt.Sprintf("unknown action: %s", req.Action))
	}

	if err != nil {
		return newResponseError(req, errorCode(err), err.Error())
	}
	return newResponse(req, data)
}

func (b *Bridge) requestReadState(req RequestMessage) (map[string]any, error) {
	status, err := b.Soundbar(req.SoundbarID)
	if err != nil {
		return nil, err
	}
	data := map[string]any{"soundbar": status}
	if state, err := b.State(req.SoundbarID); err == nil {
		data["state"] = state
	}
	return data, nil
}

func (b *Bridge) requestRefresh(ctx context.Context, req RequestMessage) (map[string]any, error) {
	state, err := b.Refresh(ctx, req.SoundbarID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"state": state}, nil
}

// requestSetEndpoint moves a soundbar to a new host. A soundbar still in
// setup picks the host up on its next attempt.
func (b *Bridge) requestSetEndpoint(ctx context.Context, req RequestMessage) (map[string]any, error) {
	m, ok := b.soundbars[req.SoundbarID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSoundbarNotConfigured, req.SoundbarID)
	}
	host, err := paramString(req.Parameters, "host")
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.cfg.Host = host
	client := m.client
	var record *device.Soundbar
	if client != nil {
		client.SetEndpoint(host)
		m.record.Host, m.record.Port = client.Endpoint()
		rec := m.record
		record = &rec
	}
	m.mu.Unlock()

	b.logInfo("soundbar endpoint changed", "soundbar", m.id, "host", host)

	if record != nil {
		if b.registry != nil {
			if err := b.registry.RegisterSoundbar(ctx, record); err != nil {
				b.logWarn("failed to register soundbar", "soundbar", m.id, "error", err)
			}
		}
		m.triggerPoll()
	}

	status := m.summary()
	return map[string]any{"host": status.Host, "port": status.Port}, nil
}

func (b *Bridge) requestReloadSources(ctx context.Context, req RequestMessage) (map[string]any, error) {
	m, err := b.ready(req.SoundbarID)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	p := m.player
	m.mu.RUnlock()

	if err := p.LoadLists(ctx); err != nil {
		return nil, err
	}
	m.triggerPoll()

	snap := p.Snapshot()
	return map[string]any{
		"source_list":     snap.SourceList,
		"sound_mode_list": snap.SoundModeList,
	}, nil
}
