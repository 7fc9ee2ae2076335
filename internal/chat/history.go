package chat

import (
	"sync"

	openai "github.com/openai/openai-go/v3"
)

// History is the bounded conversation memory: a sliding window over the
// most recent exchange pairs. Messages belonging to an in-flight tool
// round-trip are pinned and survive trimming until the round resolves.
type History struct {
	mu      sync.Mutex
	entries []entry
}

type entry struct {
	role   string
	text   string
	param  openai.ChatCompletionMessageParamUnion
	pinned bool
}

func NewHistory() *History { return &History{} }

func (h *History) AppendUser(text string) {
	h.append(entry{role: "user", text: text, param: openai.UserMessage(text)})
}

func (h *History) AppendAssistant(text string) {
	h.append(entry{role: "assistant", text: text, param: openai.AssistantMessage(text)})
}

// AppendToolRequest stores the raw assistant message carrying tool calls,
// pinned for the duration of the round-trip.
func (h *History) AppendToolRequest(param openai.ChatCompletionMessageParamUnion) {
	h.append(entry{role: "assistant", param: param, pinned: true})
}

// AppendToolResult stores a tool result message, pinned like its request.
func (h *History) AppendToolResult(callID, text string) {
	h.append(entry{role: "tool", text: text, param: openai.ToolMessage(text, callID), pinned: true})
}

func (h *History) append(e entry) {
	h.mu.Lock()
	h.entries = append(h.entries, e)
	h.mu.Unlock()
}

// Unpin marks the current tool round-trip as resolved; its messages become
// ordinary history subject to eviction.
func (h *History) Unpin() {
	h.mu.Lock()
	for i := range h.entries {
		h.entries[i].pinned = false
	}
	h.mu.Unlock()
}

// Trim drops the oldest exchange blocks until at most 2*window messages
// remain. A block is a user message and everything up to the next user
// message, so a plain exchange leaves as a pair and a tool turn leaves as
// user, tool request, tool result and final reply together. A tool message
// must never be left without the assistant message that requested it.
// Pinned messages stop the eviction.
func (h *History) Trim(window int) {
	if window <= 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for len(h.entries) > 2*window {
		n := h.blockLen()
		if n == 0 {
			return
		}
		for i := 0; i < n; i++ {
			if h.entries[i].pinned {
				return
			}
		}
		h.entries = h.entries[n:]
	}
}

// blockLen measures the leading exchange block: the first entry plus every
// following entry up to the next user message.
func (h *History) blockLen() int {
	if len(h.entries) == 0 {
		return 0
	}
	n := 1
	for n < len(h.entries) && h.entries[n].role != "user" {
		n++
	}
	return n
}

// Messages returns the window as request parameters, oldest first.
func (h *History) Messages() []openai.ChatCompletionMessageParamUnion {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]openai.ChatCompletionMessageParamUnion, len(h.entries))
	for i, e := range h.entries {
		out[i] = e.param
	}
	return out
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Clear wipes the conversation on explicit reset.
func (h *History) Clear() {
	h.mu.Lock()
	h.entries = nil
	h.mu.Unlock()
}

// roles returns the role sequence, oldest first. Test helper.
func (h *History) roles() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.entries))
	for i, e := range h.entries {
		out[i] = e.role
	}
	return out
}

// texts returns the text of each entry, oldest first. Test helper.
func (h *History) texts() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.entries))
	for i, e := range h.entries {
		out[i] = e.text
	}
	return out
}
