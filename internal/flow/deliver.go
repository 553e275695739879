package flow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	apperrors "github.com/etendosoftware/sso-gateway/internal/errors"
)

// MessageTypePickerSuccess is the only callback message type flows act on.
const MessageTypePickerSuccess = "PICKER_SUCCESS"

// Message is a cross-window completion message relayed from the callback
// page. Origin is the browser-reported origin of the sender, not a field the
// sender chooses.
type Message struct {
	Origin  string  `json:"origin"`
	Type    string  `json:"type"`
	State   string  `json:"state"`
	Payload Payload `json:"payload"`
}

// Payload carries the provider's result document and, optionally, the ERP
// endpoint that should receive it.
type Payload struct {
	ProcessEndpoint string          `json:"processEndpoint,omitempty"`
	Doc             json.RawMessage `json:"doc,omitempty"`
}

// ProcessPoster posts a callback document to an ERP process endpoint and
// reports whether the endpoint accepted it.
type ProcessPoster interface {
	Post(ctx context.Context, endpoint string, doc json.RawMessage) error
}

// HTTPProcessPoster posts documents over HTTP and inspects the response's
// status field.
type HTTPProcessPoster struct {
	client *http.Client
}

// NewHTTPProcessPoster creates a poster. A nil client uses http.DefaultClient.
func NewHTTPProcessPoster(client *http.Client) *HTTPProcessPoster {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPProcessPoster{client: client}
}

func (p *HTTPProcessPoster) Post(ctx context.Context, endpoint string, doc json.RawMessage) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(doc))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("process endpoint returned HTTP %d", resp.StatusCode)
	}

	var body struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("process endpoint returned unreadable body: %w", err)
	}
	if body.Status != "" && body.Status != "success" {
		return fmt.Errorf("process endpoint rejected document: %s", body.Message)
	}
	return nil
}

// Deliver routes a callback message to its pending flow. Messages that are
// malformed, reference no pending flow, or arrive from an untrusted origin
// are discarded without touching the message bar; the returned error exists
// for transport-level logging only. An origin mismatch leaves the flow
// pending, so a later legitimate message can still complete it.
func (o *Orchestrator) Deliver(ctx context.Context, msg Message) error {
	logger := zerolog.Ctx(ctx)

	state, err := o.signer.Decode(msg.State)
	if err != nil {
		logger.Debug().Err(err).Msg("Discarding callback with malformed state token")
		return apperrors.ErrMalformedToken
	}

	flow, ok := o.lookup(state.Nonce)
	if !ok {
		logger.Debug().Msg("Discarding callback with no pending flow")
		return apperrors.ErrFlowNotFound
	}

	if msg.Origin != o.config.expectedOrigin() {
		logger.Debug().
			Str("origin", msg.Origin).
			Msg("Discarding callback from untrusted origin")
		return apperrors.ErrUntrustedOrigin
	}

	if msg.Type != MessageTypePickerSuccess {
		logger.Debug().Str("type", msg.Type).Msg("Discarding callback of unknown type")
		return nil
	}

	record, err := o.store.Consume(ctx, state.Nonce)
	if err != nil {
		logger.Debug().Err(err).Msg("Discarding callback for consumed or expired flow")
		return apperrors.ErrFlowNotFound
	}
	if record.UserID != state.UserID {
		logger.Debug().Msg("Discarding callback whose token does not match its flow")
		return apperrors.ErrMalformedToken
	}

	o.unregister(state.Nonce)

	endpoint := msg.Payload.ProcessEndpoint
	if endpoint == "" {
		endpoint = record.ProcessEndpoint
	}

	result := Result{State: StateSuccess}
	if endpoint != "" && o.processor != nil {
		if err := o.processor.Post(ctx, endpoint, msg.Payload.Doc); err != nil {
			logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Process endpoint rejected callback document")
			o.bar.Error(ctx, "The selected document could not be processed.")
			result = Result{State: StateRejected, Err: err}
		} else {
			o.bar.Success(ctx, "Document processed successfully.")
		}
	} else {
		o.bar.Success(ctx, "Account linked successfully.")
	}

	if flow.settle(result) {
		o.popups.Close(flow.session)
	}
	return result.Err
}
