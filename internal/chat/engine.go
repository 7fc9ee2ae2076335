// Package chat owns the conversation with the language model: the bounded
// history, the system prompt, and the tool round-trip that lets the model
// drive the music player before it produces the spoken reply.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/openai/openai-go/v3"

	"talkie/internal/tools"
)

var (
	// ErrNothingToSay is the caller-error case: empty user text and empty
	// history. No request is sent.
	ErrNothingToSay = errors.New("chat: nothing to say")

	ErrNoReply = errors.New("chat: model returned no usable reply")
)

// Reply is the final text of one turn. Music is true when the turn executed
// a play/skip tool call, so the controller should not immediately re-open
// the microphone onto the playing track.
type Reply struct {
	Text  string
	Music bool
}

// ToolRunner executes one tool call and always yields a result.
type ToolRunner interface {
	Run(ctx context.Context, name, argsJSON string) tools.Result
}

// Engine drives respond() turns against the chat-completion service.
type Engine struct {
	client        openai.Client
	model         string
	maxTokens     int64
	systemPrompt  string
	toolPrompt    string
	window        int
	maxToolRounds int
	runner        ToolRunner
	authorized    func() bool
	log           *slog.Logger

	hist *History
}

type Config struct {
	Model         string
	MaxTokens     int64
	SystemPrompt  string
	ToolPrompt    string
	Window        int
	MaxToolRounds int
}

func NewEngine(client openai.Client, cfg Config, runner ToolRunner, authorized func() bool, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = 1
	}
	if authorized == nil {
		authorized = func() bool { return false }
	}
	return &Engine{
		client:        client,
		model:         cfg.Model,
		maxTokens:     cfg.MaxTokens,
		systemPrompt:  cfg.SystemPrompt,
		toolPrompt:    cfg.ToolPrompt,
		window:        cfg.Window,
		maxToolRounds: cfg.MaxToolRounds,
		runner:        runner,
		authorized:    authorized,
		log:           log,
		hist:          NewHistory(),
	}
}

// History exposes the conversation memory, mainly for tests and debugging.
func (e *Engine) History() *History { return e.hist }

// Reset clears the conversation.
func (e *Engine) Reset() { e.hist.Clear() }

// Respond runs one conversation turn. A tool request from the model is
// executed, both sides of the round-trip are appended to history, and the
// model is asked again with no new user text so it can phrase a reply that
// knows the tool outcome. At most maxToolRounds such round-trips happen per
// turn; past that, the tool result text itself becomes the reply so the
// user is never left in silence.
func (e *Engine) Respond(ctx context.Context, userText string) (Reply, error) {
	userText = strings.TrimSpace(userText)
	if userText == "" && e.hist.Len() == 0 {
		return Reply{}, ErrNothingToSay
	}
	if userText != "" {
		e.hist.AppendUser(userText)
		e.hist.Trim(e.window)
	}

	defer e.hist.Unpin()

	var (
		music        bool
		lastToolText string
	)
	for round := 0; ; round++ {
		resp, err := e.client.Chat.Completions.New(ctx, e.buildParams())
		if err != nil {
			return Reply{}, fmt.Errorf("chat completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return Reply{}, fmt.Errorf("%w: no choices", ErrNoReply)
		}
		msg := resp.Choices[0].Message

		if len(msg.ToolCalls) > 0 && round < e.maxToolRounds {
			e.hist.AppendToolRequest(msg.ToParam())
			for _, tc := range msg.ToolCalls {
				res := e.runner.Run(ctx, tc.Function.Name, tc.Function.Arguments)
				if res.Music {
					music = true
				}
				lastToolText = res.Message
				e.hist.AppendToolResult(tc.ID, res.Text)
			}
			continue
		}

		text := strings.TrimSpace(msg.Content)
		if text == "" {
			// The model asked for yet another tool round or produced
			// nothing. Fall back to the tool outcome so the turn still
			// surfaces a reply.
			if lastToolText == "" {
				return Reply{}, ErrNoReply
			}
			e.log.Warn("model gave no final text, replying with tool result")
			text = lastToolText
		}

		e.hist.AppendAssistant(text)
		e.hist.Unpin()
		e.hist.Trim(e.window)
		return Reply{Text: text, Music: music}, nil
	}
}

func (e *Engine) buildParams() openai.ChatCompletionNewParams {
	system := e.systemPrompt
	withTools := e.authorized()
	if withTools && e.toolPrompt != "" {
		system += "\n\n" + e.toolPrompt
	}

	hist := e.hist.Messages()
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(hist)+1)
	msgs = append(msgs, openai.SystemMessage(system))
	msgs = append(msgs, hist...)

	params := openai.ChatCompletionNewParams{
		Model:     openai.ChatModel(e.model),
		Messages:  msgs,
		MaxTokens: openai.Int(e.maxTokens),
	}
	if withTools {
		params.Tools = tools.Catalogue()
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
			OfAuto: openai.Opt("auto"),
		}
	}
	return params
}
