package portal

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"planswitch/internal/types"
)

// Client runs the login and confirm flows for one run. It owns nothing
// beyond the Session it was given, so discarding the Session discards the
// portal state.
type Client struct {
	session    *Session
	base       *url.URL
	endpoints  Endpoints
	classifier Classifier
	logger     *slog.Logger
}

// ClientConfig configures a Client.
type ClientConfig struct {
	Session    *Session
	BaseURL    *url.URL
	Endpoints  Endpoints
	Classifier Classifier
	Logger     *slog.Logger
}

// NewClient creates a Client. A nil Classifier uses the default keywords.
func NewClient(cfg ClientConfig) *Client {
	classifier := cfg.Classifier
	if classifier == nil {
		classifier = NewKeywordClassifier()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		session:    cfg.Session,
		base:       cfg.BaseURL,
		endpoints:  cfg.Endpoints.withDefaults(),
		classifier: classifier,
		logger:     logger,
	}
}

// checkStatus turns a status of 400 or above into a transport AppError.
func checkStatus(page *Page, what string) error {
	if page.StatusCode >= http.StatusBadRequest {
		return types.NewAppErrorWithDetails(types.ErrCodeUpstreamTransport,
			fmt.Sprintf("%s returned HTTP %d", what, page.StatusCode), nil,
			map[string]any{"status": page.StatusCode})
	}
	return nil
}
