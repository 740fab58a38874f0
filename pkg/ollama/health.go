package ollama

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BryanTheLai/stackrag/pkg/logger"
)

// HealthStatus represents the health status of Ollama service
type HealthStatus struct {
	Available bool
	Error     error
	Models    []Model
}

// CheckHealth reports whether the server answers and which models it has.
// Connection problems are reported in the status, not as an error.
func (c *Client) CheckHealth(ctx context.Context) *HealthStatus {
	log := logger.WithComponent("ollama_health")
	log.Debug("Checking Ollama health", "base_url", c.baseURL)

	tags, err := c.Tags(ctx)
	if err != nil {
		log.Warn("Ollama unavailable", "error", err)
		return &HealthStatus{
			Available: false,
			Error:     fmt.Errorf("cannot reach Ollama at %s: %w", c.baseURL, err),
		}
	}

	log.Debug("Ollama health check successful", "model_count", len(tags.Models))
	return &HealthStatus{Available: true, Models: tags.Models}
}

// HasModel reports whether name is installed.
func (h *HealthStatus) HasModel(name string) bool {
	for _, m := range h.Models {
		if SameModel(m.Name, name) {
			return true
		}
	}
	return false
}

// SameModel reports whether an installed model name refers to name. A name
// without a tag matches the ":latest" variant.
func SameModel(installed, name string) bool {
	if name == "" {
		return false
	}
	if installed == name {
		return true
	}
	return !strings.Contains(name, ":") && installed == name+":latest"
}

// CheckModel fails unless the server is up and has the model.
func (c *Client) CheckModel(ctx context.Context, name string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	health := c.CheckHealth(ctx)
	if !health.Available {
		return health.Error
	}
	if !health.HasModel(name) {
		return fmt.Errorf("model %q is not installed (try: ollama pull %s)", name, name)
	}
	return nil
}
