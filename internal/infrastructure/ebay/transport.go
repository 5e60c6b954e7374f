package ebay

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/catalogfill/enricher/internal/domain"
)

const (
	// maxBodyBytes caps how much of a response body is read into memory
	maxBodyBytes = 4 << 20
	// maxLoggedBody caps how much of an error body reaches logs and errors
	maxLoggedBody = 512
)

// doLogged executes req and returns the response body and status. at is the
// timestamp captured by the caller at the call boundary; every line for this
// call carries it so request and response can be correlated.
func doLogged(client *http.Client, logger *zap.Logger, at time.Time, req *http.Request) ([]byte, int, error) {
	fields := []zap.Field{
		zap.Time("at", at),
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
	}
	logger.Info("request sent, waiting for response", fields...)

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		logger.Warn("request failed", append(fields,
			zap.Duration("latency", time.Since(start)),
			zap.Error(err))...)
		return nil, 0, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := readLimitedBody(resp.Body, maxBodyBytes)
	if err != nil {
		logger.Warn("reading response body failed", append(fields,
			zap.Int("status", resp.StatusCode),
			zap.Error(err))...)
		return nil, resp.StatusCode, fmt.Errorf("%w: reading body: %v", domain.ErrTransport, err)
	}

	logger.Info("response received", append(fields,
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))...)

	return body, resp.StatusCode, nil
}

// readLimitedBody reads at most limit bytes from r
func readLimitedBody(r io.Reader, limit int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, limit))
}

// truncate shortens s for logs and error messages
func truncate(s string) string {
	if len(s) <= maxLoggedBody {
		return s
	}
	return s[:maxLoggedBody] + "...(truncated)"
}
