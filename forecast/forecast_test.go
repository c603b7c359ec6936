package forecast_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gowatsonx/watsonx"
	"github.com/gowatsonx/watsonx/forecast"
	"github.com/gowatsonx/watsonx/iam"
	"github.com/gowatsonx/watsonx/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForecast(t *testing.T) {
	t.Parallel()
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		fmt.Fprint(w, `{
			"model_id": "ibm/granite-ttm-512-96-r2",
			"results": [{
				"date": ["2026-01-04T00:00:00", "2026-01-05T00:00:00"],
				"demand": [101.5, 98.2]
			}]
		}`)
	}))
	t.Cleanup(srv.Close)

	client := forecast.New(transport.New(srv.URL, iam.StaticToken("t")),
		forecast.WithProject("proj-1"), forecast.WithModel("ibm/granite-ttm-512-96-r2"))

	result, err := client.Forecast(context.Background(), forecast.Request{
		Schema: forecast.Schema{
			TimestampColumn: "date",
			TargetColumns:   []string{"demand"},
		},
		Data: map[string][]any{
			"date":   {"2026-01-01T00:00:00", "2026-01-02T00:00:00", "2026-01-03T00:00:00"},
			"demand": {100.0, 102.0, 99.0},
		},
		PredictionLength: 2,
	})
	require.NoError(t, err)

	schema := captured["schema"].(map[string]any)
	assert.Equal(t, "date", schema["timestamp_column"])
	assert.Equal(t, []any{"demand"}, schema["target_columns"])
	assert.Equal(t, float64(2), captured["parameters"].(map[string]any)["prediction_length"])

	require.Len(t, result.Results, 1)
	assert.Equal(t, []any{101.5, 98.2}, result.Results[0]["demand"])
}

func TestForecast_Validation(t *testing.T) {
	t.Parallel()
	client := forecast.New(transport.New("http://example.invalid", iam.StaticToken("t")),
		forecast.WithProject("proj-1"), forecast.WithModel("m"))

	tests := []struct {
		name string
		req  forecast.Request
	}{
		{"missing timestamp column", forecast.Request{
			Data: map[string][]any{"date": {1}},
		}},
		{"missing data", forecast.Request{
			Schema: forecast.Schema{TimestampColumn: "date"},
		}},
		{"timestamp column absent from data", forecast.Request{
			Schema: forecast.Schema{TimestampColumn: "date"},
			Data:   map[string][]any{"demand": {1.0}},
		}},
		{"ragged columns", forecast.Request{
			Schema: forecast.Schema{TimestampColumn: "date"},
			Data: map[string][]any{
				"date":   {"a", "b"},
				"demand": {1.0},
			},
		}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := client.Forecast(context.Background(), tt.req)
			assert.ErrorIs(t, err, watsonx.ErrValidation)
		})
	}
}
