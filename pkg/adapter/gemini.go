package adapter

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

type Gemini interface {
	GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	CreateChat(ctx context.Context, config *genai.GenerateContentConfig, history []*genai.Content) (*genai.Chat, error)
	ConnectLive(ctx context.Context, config *genai.LiveConnectConfig) (LiveSession, error)
}

// LiveSession is an open bidirectional stream to the inference service.
// Frames go in, incremental server messages come out.
type LiveSession interface {
	// SendFrame pushes one encoded JPEG frame as realtime input
	SendFrame(jpeg []byte) error
	// Receive blocks until the next server message or stream failure
	Receive() (*genai.LiveServerMessage, error)
	Close() error
}

type GeminiClient struct {
	client          *genai.Client
	generativeModel string
	liveModel       string
}

type GeminiOption func(*GeminiClient)

func WithGenerativeModel(model string) GeminiOption {
	return func(g *GeminiClient) {
		g.generativeModel = model
	}
}

func WithLiveModel(model string) GeminiOption {
	return func(g *GeminiClient) {
		g.liveModel = model
	}
}

// NewGemini creates a client against the Gemini API with an API key.
func NewGemini(ctx context.Context, apiKey string, opts ...GeminiOption) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client")
	}

	return newGeminiClient(client, opts), nil
}

// NewGeminiVertex creates a client against Vertex AI with a project and
// location, for deployments that authenticate with ADC instead of a key.
func NewGeminiVertex(ctx context.Context, projectID, location string, opts ...GeminiOption) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client")
	}

	return newGeminiClient(client, opts), nil
}

func newGeminiClient(client *genai.Client, opts []GeminiOption) *GeminiClient {
	g := &GeminiClient{
		client:          client,
		generativeModel: "gemini-2.5-flash",
		liveModel:       "gemini-2.5-flash-native-audio-preview-12-2025",
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

func (g *GeminiClient) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.generativeModel, contents, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate content")
	}
	return resp, nil
}

func (g *GeminiClient) CreateChat(ctx context.Context, config *genai.GenerateContentConfig, history []*genai.Content) (*genai.Chat, error) {
	chat, err := g.client.Chats.Create(ctx, g.generativeModel, config, history)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create new gemini chat")
	}

	return chat, nil
}

func (g *GeminiClient) ConnectLive(ctx context.Context, config *genai.LiveConnectConfig) (LiveSession, error) {
	session, err := g.client.Live.Connect(ctx, g.liveModel, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to connect live session")
	}

	return &liveSession{session: session}, nil
}

type liveSession struct {
	session *genai.Session
}

func (s *liveSession) SendFrame(jpeg []byte) error {
	err := s.session.SendRealtimeInput(genai.LiveRealtimeInput{
		Media: &genai.Blob{
			Data:     jpeg,
			MIMEType: "image/jpeg",
		},
	})
	if err != nil {
		return goerr.Wrap(err, "failed to send realtime frame")
	}
	return nil
}

func (s *liveSession) Receive() (*genai.LiveServerMessage, error) {
	msg, err := s.session.Receive()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to receive live message")
	}
	return msg, nil
}

func (s *liveSession) Close() error {
	return s.session.Close()
}
