package member

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/fansearch/core"
)

const defaultRequestTimeout = 10 * time.Second

// HTTPSource fetches member records from the upstream member service over
// JSON HTTP.
type HTTPSource struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

var _ Source = (*HTTPSource)(nil)

// NewHTTPSource creates an HTTPSource for the service at baseURL
// (e.g. "http://members.internal:8080").
func NewHTTPSource(baseURL string) *HTTPSource {
	return &HTTPSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultRequestTimeout},
		logger:  slog.Default().With("component", "member-source"),
	}
}

// GetMember retrieves one member by ID from GET {baseURL}/members/{id}.
func (s *HTTPSource) GetMember(ctx context.Context, id uint64) (*Member, error) {
	url := fmt.Sprintf("%s/members/%d", s.baseURL, id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, core.E(core.KindInvalidInput, "member.GetMember", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, core.E(core.KindConnection, "member.GetMember", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, core.Ef(core.KindEntityNotFound, "member.GetMember", "member %d not found", id)
	case resp.StatusCode != http.StatusOK:
		return nil, core.Ef(core.KindConnection, "member.GetMember",
			"member service returned status %d", resp.StatusCode)
	}

	var m Member
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return nil, core.E(core.KindSerialization, "member.GetMember", err)
	}
	if m.ID == 0 {
		m.ID = id
	}

	return &m, nil
}
