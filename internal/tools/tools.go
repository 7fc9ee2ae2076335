// Package tools bridges model tool calls to the music player. Execution
// never fails at the protocol level: every outcome, including an unknown
// tool name or bad arguments, comes back as a JSON result string with a
// success flag that the model can read.
package tools

import (
	"context"
	"encoding/json"
	"log/slog"

	openai "github.com/openai/openai-go/v3"

	"talkie/internal/player"
)

// Tool names in the catalogue.
const (
	NameSearchAndPlay = "search_and_play"
	NamePlay          = "play"
	NamePause         = "pause"
	NameNext          = "next"
	NamePrevious      = "previous"
)

// Result is what one tool call produced. Text is the JSON payload appended
// to the conversation; Music is true when the call started or resumed
// playback, which suppresses the immediate re-listen after the reply.
type Result struct {
	OK      bool
	Music   bool
	Text    string
	Message string
}

type resultPayload struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func makeResult(ok bool, message string, music bool) Result {
	raw, err := json.Marshal(resultPayload{Success: ok, Message: message})
	if err != nil {
		raw = []byte(`{"success":false,"message":"internal encoding error"}`)
	}
	return Result{OK: ok, Music: music && ok, Text: string(raw), Message: message}
}

// Executor dispatches tool calls by name onto the player collaborator.
type Executor struct {
	player player.Controls
	log    *slog.Logger
}

func NewExecutor(p player.Controls, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{player: p, log: log}
}

type searchArgs struct {
	Query string `json:"query"`
}

// Run executes exactly one tool call and always produces a result.
func (x *Executor) Run(ctx context.Context, name, argsJSON string) Result {
	x.log.Info("tool call", "name", name, "args", argsJSON)

	switch name {
	case NameSearchAndPlay:
		var args searchArgs
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil || args.Query == "" {
			return makeResult(false, "search_and_play needs a non-empty query argument", false)
		}
		ok, msg := x.player.SearchAndPlay(ctx, args.Query)
		return makeResult(ok, msg, true)
	case NamePlay:
		ok, msg := x.player.Play(ctx)
		return makeResult(ok, msg, true)
	case NamePause:
		ok, msg := x.player.Pause(ctx)
		return makeResult(ok, msg, false)
	case NameNext:
		ok, msg := x.player.Next(ctx)
		return makeResult(ok, msg, true)
	case NamePrevious:
		ok, msg := x.player.Previous(ctx)
		return makeResult(ok, msg, true)
	default:
		return makeResult(false, "unknown function: "+name, false)
	}
}

// Catalogue is the closed set of five function descriptors attached to chat
// requests when the player is authorized.
func Catalogue() []openai.ChatCompletionToolUnionParam {
	noArgs := openai.FunctionParameters{
		"type":       "object",
		"properties": map[string]any{},
	}
	return []openai.ChatCompletionToolUnionParam{
		openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        NameSearchAndPlay,
			Description: openai.String("Найти трек или исполнителя в музыкальном сервисе и включить воспроизведение. Запрос передаётся как есть, без перевода."),
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "Название трека, исполнителя или плейлиста",
					},
				},
				"required": []string{"query"},
			},
		}),
		openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        NamePlay,
			Description: openai.String("Возобновить воспроизведение музыки."),
			Parameters:  noArgs,
		}),
		openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        NamePause,
			Description: openai.String("Поставить музыку на паузу."),
			Parameters:  noArgs,
		}),
		openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        NameNext,
			Description: openai.String("Переключить на следующий трек."),
			Parameters:  noArgs,
		}),
		openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        NamePrevious,
			Description: openai.String("Вернуться к предыдущему треку."),
			Parameters:  noArgs,
		}),
	}
}
