package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := Registry.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metrics
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestRecordTransfer(t *testing.T) {
	before := counterValue(t, "ledgerd_transfers_total", map[string]string{"outcome": OutcomeRejected})
	RecordTransfer(OutcomeRejected, 10)
	after := counterValue(t, "ledgerd_transfers_total", map[string]string{"outcome": OutcomeRejected})
	assert.Equal(t, before+1, after)
}

func TestRecordHistoryAppendFailure(t *testing.T) {
	before := counterValue(t, "ledgerd_history_append_failures_total", nil)
	RecordHistoryAppendFailure()
	assert.Equal(t, before+1, counterValue(t, "ledgerd_history_append_failures_total", nil))
}

func TestHandlerExposesRegistry(t *testing.T) {
	RecordTransfer(OutcomeCommitted, 42)
	RecordDeposit(OutcomeCommitted)

	app := fiber.New()
	app.Use(Instrument())
	app.Get("/metrics", Handler())
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendStatus(http.StatusNoContent) })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(body)
	for _, name := range []string{
		"ledgerd_transfers_total",
		"ledgerd_transfer_amount_bucket",
		"ledgerd_deposits_total",
		`ledgerd_http_requests_total{method="GET",route="/ping",status="204"}`,
	} {
		assert.True(t, strings.Contains(text, name), "missing %s", name)
	}
}
