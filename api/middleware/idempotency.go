package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/fuelstation-backend/api/responses"
	pkgerrors "github.com/angelmondragon/fuelstation-backend/pkg/errors"
	"github.com/angelmondragon/fuelstation-backend/pkg/logger"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayHeader      = "Idempotent-Replay"

	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
	inFlightTTL            = 2 * time.Minute

	inFlightMarker = "in-flight"
)

type idempotencyRule struct {
	method string
	// glob is matched with path.Match; "*" stands for one path segment.
	glob string
	ttl  time.Duration
}

// Money- and stock-moving decisions keep their keys for a week.
var idempotencyRules = []idempotencyRule{
	{http.MethodPost, "/api/v1/gas-stations", defaultIdempotencyTTL},
	{http.MethodPost, "/api/v1/gas-stations/*/products", defaultIdempotencyTTL},
	{http.MethodPost, "/api/v1/gas-stations/*/tanks", defaultIdempotencyTTL},
	{http.MethodPost, "/api/v1/gas-stations/*/stations", defaultIdempotencyTTL},
	{http.MethodPost, "/api/v1/gas-stations/*/coa", defaultIdempotencyTTL},
	{http.MethodPost, "/api/v1/gas-stations/*/titipan-accounts", defaultIdempotencyTTL},
	{http.MethodPost, "/api/v1/nozzles", defaultIdempotencyTTL},
	{http.MethodPost, "/api/v1/unloads", defaultIdempotencyTTL},
	{http.MethodPost, "/api/v1/titipan-fills", defaultIdempotencyTTL},
	{http.MethodPost, "/api/v1/tank-readings", defaultIdempotencyTTL},
	{http.MethodPost, "/api/v1/shifts/check-in", defaultIdempotencyTTL},
	{http.MethodPost, "/api/v1/shifts/*/readings", defaultIdempotencyTTL},
	{http.MethodPost, "/api/v1/transactions/cash", defaultIdempotencyTTL},
	{http.MethodPost, "/api/v1/transactions/purchases", defaultIdempotencyTTL},
	{http.MethodPost, "/api/v1/transactions/adjustments", defaultIdempotencyTTL},

	{http.MethodPost, "/api/v1/deposits", criticalIdempotencyTTL},
	{http.MethodPost, "/api/v1/shifts/*/check-out", criticalIdempotencyTTL},
	{http.MethodPost, "/api/v1/*/*/approve", criticalIdempotencyTTL},
	{http.MethodPost, "/api/v1/*/*/reject", criticalIdempotencyTTL},
	{http.MethodPatch, "/api/v1/transactions/*", criticalIdempotencyTTL},
}

// idempotencyStore is the slice of the redis client the middleware needs.
type idempotencyStore interface {
	Get(context.Context, string) (string, error)
	SetNX(context.Context, string, any, time.Duration) (bool, error)
	Set(context.Context, string, any, time.Duration) error
	Del(context.Context, ...string) error
	IdempotencyKey(scope, id string) string
}

type idempotencyRecord struct {
	Status      int    `json:"status"`
	Body        []byte `json:"body"`
	ContentType string `json:"content_type,omitempty"`
	RequestHash string `json:"request_hash"`
}

// Idempotency replays the stored response for a repeated Idempotency-Key on
// write routes. A key is claimed before the handler runs so concurrent
// retries are refused. Server errors release the key so the client can retry.
func Idempotency(store idempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, ok := routeTTL(r.Method, r.URL.Path)
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if clientKey == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			requestHash := hashBody(body)
			key := store.IdempotencyKey(buildScope(r), clientKey)

			claimed, err := store.SetNX(ctx, key, inFlightMarker, inFlightTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
				return
			}
			if !claimed {
				replay(ctx, logg, w, store, key, requestHash)
				return
			}

			rec := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			if rec.status == 0 {
				rec.status = http.StatusOK
			}

			if rec.status >= http.StatusInternalServerError {
				if err := store.Del(ctx, key); err != nil {
					logError(ctx, logg, "release idempotency key", err)
				}
				return
			}
			payload, err := json.Marshal(idempotencyRecord{
				Status:      rec.status,
				Body:        rec.body.Bytes(),
				ContentType: rec.Header().Get("Content-Type"),
				RequestHash: requestHash,
			})
			if err != nil {
				logError(ctx, logg, "marshal idempotency record", err)
				return
			}
			if err := store.Set(ctx, key, string(payload), ttl); err != nil {
				logError(ctx, logg, "persist idempotency record", err)
			}
		})
	}
}

func replay(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, store idempotencyStore, key, requestHash string) {
	stored, err := store.Get(ctx, key)
	switch {
	case errors.Is(err, redis.Nil):
		// the first attempt failed and released the key between our claim and read
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "previous request with this key failed, retry"))
		return
	case err != nil:
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read idempotency record"))
		return
	case stored == inFlightMarker:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this key is still in progress"))
		return
	}

	var record idempotencyRecord
	if err := json.Unmarshal([]byte(stored), &record); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	if record.RequestHash != requestHash {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
		return
	}
	if record.ContentType != "" {
		w.Header().Set("Content-Type", record.ContentType)
	}
	w.Header().Set(replayHeader, "true")
	w.WriteHeader(record.Status)
	_, _ = w.Write(record.Body)
}

// Keys are scoped to the caller so two operators cannot collide on a key.
func buildScope(r *http.Request) string {
	return strings.Join([]string{
		UserIDFromContext(r.Context()),
		GasStationIDFromContext(r.Context()),
		r.Method,
		trimSlash(r.URL.Path),
	}, "|")
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func trimSlash(p string) string {
	if len(p) > 1 {
		return strings.TrimSuffix(p, "/")
	}
	return p
}

func routeTTL(method, requestPath string) (time.Duration, bool) {
	requestPath = trimSlash(requestPath)
	for _, rule := range idempotencyRules {
		if rule.method != method {
			continue
		}
		if ok, _ := path.Match(rule.glob, requestPath); ok {
			return rule.ttl, true
		}
	}
	return 0, false
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil || err == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
