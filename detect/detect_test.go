package detect_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gowatsonx/watsonx"
	"github.com/gowatsonx/watsonx/detect"
	"github.com/gowatsonx/watsonx/iam"
	"github.com/gowatsonx/watsonx/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	t.Parallel()
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		fmt.Fprint(w, `{
			"detections": [
				{"detection_type": "pii", "text": "jane@example.com", "start": 11, "end": 27, "score": 0.97}
			]
		}`)
	}))
	t.Cleanup(srv.Close)

	client := detect.New(transport.New(srv.URL, iam.StaticToken("t")), detect.WithProject("proj-1"))

	detections, err := client.Detect(context.Background(), detect.Request{
		Input: "contact me jane@example.com",
		Detectors: map[string]map[string]any{
			"pii": nil,
			"hap": {"threshold": 0.5},
		},
	})
	require.NoError(t, err)

	sent := captured["detectors"].(map[string]any)
	require.Len(t, sent, 2)
	// nil parameter maps marshal as {}, not null
	assert.Equal(t, map[string]any{}, sent["pii"])
	assert.Equal(t, map[string]any{"threshold": 0.5}, sent["hap"])

	require.Len(t, detections, 1)
	assert.Equal(t, detect.Detection{
		Type:  "pii",
		Text:  "jane@example.com",
		Start: 11,
		End:   27,
		Score: 0.97,
	}, detections[0])
}

func TestDetect_Validation(t *testing.T) {
	t.Parallel()
	client := detect.New(transport.New("http://example.invalid", iam.StaticToken("t")),
		detect.WithProject("proj-1"))

	_, err := client.Detect(context.Background(), detect.Request{
		Detectors: map[string]map[string]any{"pii": {}},
	})
	assert.ErrorIs(t, err, watsonx.ErrValidation)

	_, err = client.Detect(context.Background(), detect.Request{Input: "text"})
	assert.ErrorIs(t, err, watsonx.ErrValidation)
}
