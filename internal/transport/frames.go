package transport

import "encoding/json"

// Wire framing for the duplex endpoint. Each frame variant nests its
// payload under a type-specific key; these structs are the only place in
// the repo that knows about that shape.

type inboundFrame struct {
	Type           string                   `json:"type"`
	Metadata       *metadataPayload         `json:"conversation_metadata_event,omitempty"`
	UserTranscript *userTranscriptPayload   `json:"user_transcription_event,omitempty"`
	AgentResponse  *agentResponsePayload    `json:"agent_response_event,omitempty"`
	Correction     *agentCorrectionPayload  `json:"agent_response_correction_event,omitempty"`
	ToolCall       *toolCallPayload         `json:"client_tool_call,omitempty"`
	Ping           *pingPayload             `json:"ping_event,omitempty"`
	Audio          json.RawMessage          `json:"audio_event,omitempty"`
}

type metadataPayload struct {
	ConversationID string `json:"conversation_id"`
}

type userTranscriptPayload struct {
	Text    string `json:"user_transcript"`
	IsFinal bool   `json:"is_final"`
}

type agentResponsePayload struct {
	Text    string `json:"agent_response"`
	IsFinal bool   `json:"is_final"`
}

type agentCorrectionPayload struct {
	CorrectedResponse string `json:"corrected_agent_response"`
}

type toolCallPayload struct {
	ToolName   string                 `json:"tool_name"`
	Parameters map[string]interface{} `json:"parameters"`
	ToolCallID string                 `json:"tool_call_id"`
}

type pingPayload struct {
	EventID int64 `json:"event_id"`
}

type outboundFrame struct {
	Type        string              `json:"type"`
	Initiation  *initiationPayload  `json:"conversation_initiation_event,omitempty"`
	UserMessage *userMessagePayload `json:"user_message_event,omitempty"`
	Pong        *pongPayload        `json:"pong_event,omitempty"`
	ToolResult  *toolResultPayload  `json:"client_tool_result,omitempty"`
}

type initiationPayload struct {
	SystemPrompt string `json:"system_prompt,omitempty"`
	Language     string `json:"language,omitempty"`
}

type userMessagePayload struct {
	Text string `json:"text"`
}

type pongPayload struct {
	EventID int64 `json:"event_id"`
}

type toolResultPayload struct {
	ToolCallID string                 `json:"tool_call_id"`
	Result     map[string]interface{} `json:"result"`
	IsError    bool                   `json:"is_error"`
}
