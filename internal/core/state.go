package core

import (
	"sync"

	"github.com/sashabaranov/go-openai"

	"github.com/Rorical/RoriAgent/internal/models"
)

const defaultMaxRecursion = 8

// ChatState is the conversation: the OpenAI history is the single source
// of truth and UI messages are derived from it on demand.
type ChatState struct {
	mu              sync.RWMutex
	chatHistory     []openai.ChatCompletionMessage
	programMessages []models.Message
	isProcessing    bool
	lastError       error

	recursionDepth    int
	maxRecursionDepth int
}

func NewChatState() *ChatState {
	return &ChatState{maxRecursionDepth: defaultMaxRecursion}
}

func (cs *ChatState) GetChatHistory() []openai.ChatCompletionMessage {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	result := make([]openai.ChatCompletionMessage, len(cs.chatHistory))
	copy(result, cs.chatHistory)
	return result
}

// GetChatHistoryWithSystemPrompt returns the history prefixed with prompt.
func (cs *ChatState) GetChatHistoryWithSystemPrompt(prompt string) []openai.ChatCompletionMessage {
	history := cs.GetChatHistory()
	return append([]openai.ChatCompletionMessage{{
		Role:    openai.ChatMessageRoleSystem,
		Content: prompt,
	}}, history...)
}

func (cs *ChatState) GetMessages() []models.Message {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	result := make([]models.Message, 0, len(cs.programMessages)+len(cs.chatHistory))
	result = append(result, cs.programMessages...)

	toolNames := make(map[string]string)
	for _, msg := range cs.chatHistory {
		switch msg.Role {
		case openai.ChatMessageRoleUser:
			result = append(result, models.Message{Content: msg.Content, Type: models.User})
		case openai.ChatMessageRoleAssistant:
			if msg.Content != "" {
				result = append(result, models.Message{Content: msg.Content, Type: models.Assistant})
			}
			for _, call := range msg.ToolCalls {
				toolNames[call.ID] = call.Function.Name
				result = append(result, models.Message{
					Content:    call.Function.Arguments,
					Type:       models.ToolCall,
					ToolCallID: call.ID,
					ToolName:   call.Function.Name,
				})
			}
		case openai.ChatMessageRoleTool:
			name, ok := toolNames[msg.ToolCallID]
			if !ok {
				name = "unknown"
			}
			result = append(result, models.Message{
				Content:    msg.Content,
				Type:       models.ToolResult,
				ToolCallID: msg.ToolCallID,
				ToolName:   name,
			})
		}
	}
	return result
}

func (cs *ChatState) IsProcessing() bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.isProcessing
}

func (cs *ChatState) GetLastError() error {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.lastError
}

// AddProgramMessage adds a notice shown above the conversation
func (cs *ChatState) AddProgramMessage(content string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.programMessages = append(cs.programMessages, models.Message{Content: content, Type: models.Program})
}

// ResetConversation drops the history before a new task.
func (cs *ChatState) ResetConversation() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.chatHistory = nil
	cs.lastError = nil
	cs.recursionDepth = 0
}

func (cs *ChatState) StartProcessingWithUserMessage(content string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.isProcessing = true
	cs.lastError = nil
	cs.recursionDepth = 0
	cs.chatHistory = append(cs.chatHistory, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: content,
	})
}

func (cs *ChatState) FinishProcessingWithError(err error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.isProcessing = false
	cs.lastError = err
	cs.recursionDepth = 0
}

func (cs *ChatState) FinishProcessing() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.isProcessing = false
	cs.lastError = nil
	cs.recursionDepth = 0
}

func (cs *ChatState) AddAssistantMessageWithToolCalls(content string, toolCalls []openai.ToolCall) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.chatHistory = append(cs.chatHistory, openai.ChatCompletionMessage{
		Role:      openai.ChatMessageRoleAssistant,
		Content:   content,
		ToolCalls: toolCalls,
	})
}

func (cs *ChatState) AddToolResultMessage(callID, result string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.chatHistory = append(cs.chatHistory, openai.ChatCompletionMessage{
		Role:       openai.ChatMessageRoleTool,
		Content:    result,
		ToolCallID: callID,
	})
}

// NextRound counts one more model request in the current turn and
// reports whether the limit allows it.
func (cs *ChatState) NextRound() bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.recursionDepth >= cs.maxRecursionDepth {
		return false
	}
	cs.recursionDepth++
	return true
}
