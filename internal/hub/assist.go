package hub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hubdeck/hubdeck/internal/config"
	"github.com/hubdeck/hubdeck/internal/errors"
	"github.com/hubdeck/hubdeck/internal/logger"
)

// Assist runs text conversations through the hub's assist pipelines.
// Each call dials a fresh socket; assist traffic is interactive and
// rare, so holding a connection open buys nothing.
type Assist struct {
	url   string
	token string
	cfg   *config.AssistConfig
	log   logger.Logger
}

// NewAssist builds an assist client from the hub and assist
// configuration.
func NewAssist(hub *config.HubConfig, cfg *config.AssistConfig, log logger.Logger) *Assist {
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &Assist{
		url:   hub.WebSocketURL(),
		token: hub.Token,
		cfg:   cfg,
		log:   log,
	}
}

// Pipeline describes one configured assist pipeline.
type Pipeline struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Language  string `json:"language"`
	Preferred bool   `json:"-"`
}

// assistFrame is the websocket envelope with the result and event
// payloads left raw; assist events carry a different shape per stage.
type assistFrame struct {
	ID      int             `json:"id"`
	Type    string          `json:"type"`
	Success *bool           `json:"success,omitempty"`
	Error   *assistError    `json:"error,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Event   json.RawMessage `json:"event,omitempty"`
	Message string          `json:"message,omitempty"`
}

type assistError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *assistError) text(fallback string) string {
	if e != nil && e.Message != "" {
		return e.Message
	}
	return fallback
}

// Pipelines lists the hub's assist pipelines, with Preferred set on
// the hub's default.
func (a *Assist) Pipelines(ctx context.Context) ([]Pipeline, error) {
	conn, err := a.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	req := map[string]interface{}{"id": 1, "type": "assist_pipeline/pipeline/list"}
	if err := conn.WriteJSON(req); err != nil {
		return nil, errors.WrapTransient(err, "failed to request pipeline list")
	}
	for {
		var f assistFrame
		if err := conn.ReadJSON(&f); err != nil {
			return nil, errors.WrapTransient(err, "pipeline list read failed")
		}
		if f.Type != "result" || f.ID != 1 {
			continue
		}
		if f.Success != nil && !*f.Success {
			return nil, errors.NewProtocolError(f.Error.text("hub refused the pipeline list"))
		}
		var out struct {
			Pipelines []Pipeline `json:"pipelines"`
			Preferred string     `json:"preferred_pipeline"`
		}
		if err := json.Unmarshal(f.Result, &out); err != nil {
			return nil, errors.WrapMalformed(err, "failed to decode pipeline list")
		}
		for i := range out.Pipelines {
			if out.Pipelines[i].ID == out.Preferred {
				out.Pipelines[i].Preferred = true
			}
		}
		return out.Pipelines, nil
	}
}

// Reply is the outcome of one assist exchange. ConversationID names
// the conversation the hub filed the turn under; passing it back into
// the next Converse keeps the context alive.
type Reply struct {
	Speech         string
	ConversationID string
}

// Converse sends one line of text through the intent stage and returns
// the pipeline's spoken reply. The configured pipeline id is used when
// set, otherwise the hub picks its preferred one. An empty
// conversationID starts a fresh conversation.
func (a *Assist) Converse(ctx context.Context, text, conversationID string) (Reply, error) {
	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}
	conn, err := a.dial(ctx)
	if err != nil {
		return Reply{}, err
	}
	defer conn.Close()

	run := map[string]interface{}{
		"id":          1,
		"type":        "assist_pipeline/run",
		"start_stage": "intent",
		"end_stage":   "intent",
		"input":       map[string]string{"text": text},
	}
	if conversationID != "" {
		run["conversation_id"] = conversationID
	}
	if a.cfg.Pipeline != "" {
		run["pipeline"] = a.cfg.Pipeline
	}
	if err := conn.WriteJSON(run); err != nil {
		return Reply{}, errors.WrapTransient(err, "failed to start assist run")
	}

	reply := Reply{ConversationID: conversationID}
	for {
		var f assistFrame
		if err := conn.ReadJSON(&f); err != nil {
			if ctx.Err() != nil {
				return Reply{}, errors.WrapTransient(ctx.Err(), "assist run timed out")
			}
			return Reply{}, errors.WrapTransient(err, "assist run read failed")
		}
		switch f.Type {
		case "result":
			if f.Success != nil && !*f.Success {
				return Reply{}, errors.NewProtocolError(f.Error.text("hub refused the assist run"))
			}
		case "event":
			var ev struct {
				Type string `json:"type"`
				Data struct {
					Code         string `json:"code"`
					Message      string `json:"message"`
					IntentOutput struct {
						ConversationID string `json:"conversation_id"`
						Response       struct {
							Speech struct {
								Plain struct {
									Speech string `json:"speech"`
								} `json:"plain"`
							} `json:"speech"`
						} `json:"response"`
					} `json:"intent_output"`
				} `json:"data"`
			}
			if err := json.Unmarshal(f.Event, &ev); err != nil {
				a.log.WithError(err).Debug("Skipping malformed assist event")
				continue
			}
			switch ev.Type {
			case "intent-end":
				reply.Speech = ev.Data.IntentOutput.Response.Speech.Plain.Speech
				if id := ev.Data.IntentOutput.ConversationID; id != "" {
					reply.ConversationID = id
				}
			case "error":
				msg := ev.Data.Message
				if msg == "" {
					msg = "assist run failed"
				}
				return Reply{}, errors.NewProtocolError(msg)
			case "run-end":
				return reply, nil
			}
		}
	}
}

func (a *Assist) dial(ctx context.Context) (*websocket.Conn, error) {
	timeout := a.cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	conn, err := authDial(ctx, a.url, a.token, timeout)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
	} else {
		conn.SetReadDeadline(time.Now().Add(timeout))
	}
	return conn, nil
}
