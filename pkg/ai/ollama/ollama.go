package ollama

import (
	"net/http"
	"net/url"

	"github.com/cognify-labs/cognify/backend/pkg/ai"

	"github.com/ollama/ollama/api"
	"golang.org/x/sync/semaphore"
)

// GraphOllamaClient implements ai.GraphAIClient against an Ollama server.
// Concurrent requests are bounded so a local GPU is not oversubscribed.
type GraphOllamaClient struct {
	ai.Meter

	descriptionModel string
	extractionModel  string

	reqLock *semaphore.Weighted

	Client *api.Client
}

// NewGraphOllamaClientParams contains configuration options for creating a new GraphOllamaClient.
type NewGraphOllamaClientParams struct {
	DescriptionModel string
	ExtractionModel  string

	BaseURL string
	ApiKey  string

	// MaxConcurrentRequests defaults to 1.
	MaxConcurrentRequests int64
}

type headerTransport struct {
	headers map[string]string
	rt      http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// clone so original request isn't modified
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	return t.rt.RoundTrip(r)
}

// NewGraphOllamaClient connects to the Ollama server at BaseURL, or to the
// address from OLLAMA_HOST when BaseURL is empty.
func NewGraphOllamaClient(
	params NewGraphOllamaClientParams,
) (*GraphOllamaClient, error) {
	var cli *api.Client
	if params.BaseURL != "" {
		u, err := url.Parse(params.BaseURL)
		if err != nil {
			return nil, err
		}

		httpClient := http.DefaultClient
		if params.ApiKey != "" {
			httpClient = &http.Client{
				Transport: &headerTransport{
					headers: map[string]string{
						"Authorization": "Bearer " + params.ApiKey,
					},
					rt: http.DefaultTransport,
				},
			}
		}
		cli = api.NewClient(u, httpClient)
	} else {
		var err error
		cli, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, err
		}
	}

	limit := params.MaxConcurrentRequests
	if limit <= 0 {
		limit = 1
	}

	return &GraphOllamaClient{
		descriptionModel: params.DescriptionModel,
		extractionModel:  params.ExtractionModel,
		reqLock:          semaphore.NewWeighted(limit),
		Client:           cli,
	}, nil
}
