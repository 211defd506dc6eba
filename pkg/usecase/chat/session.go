package chat

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/vetscan/vetscan/pkg/adapter"
	"google.golang.org/genai"
)

const consultantPrompt = "You are a world-class AI Veterinary Consultant and Animal Rescue Specialist. Provide expert, empathetic advice on animal health, emergency first aid, and rescue protocols. Keep responses concise but thorough. Always prioritize animal safety and professional veterinary care."

// Session manages an interactive consultation with the vet assistant.
// The conversation lives in memory for the duration of the session.
type Session struct {
	chat *genai.Chat
}

func New(ctx context.Context, gemini adapter.Gemini) (*Session, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(consultantPrompt, ""),
	}

	chat, err := gemini.CreateChat(ctx, config, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create consultation session")
	}

	return &Session{chat: chat}, nil
}

// Send forwards one user message and returns the assistant's reply text.
func (s *Session) Send(ctx context.Context, message string) (string, error) {
	resp, err := s.chat.SendMessage(ctx, genai.Part{Text: message})
	if err != nil {
		return "", goerr.Wrap(err, "failed to send message")
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		text += part.Text
	}

	return text, nil
}
