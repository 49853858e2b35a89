// cache.go — middleware кэширования списочных GET-запросов через Redis.
// Ключ строится из полного пути и query-строки; мутации
// (POST/PATCH/PUT/DELETE) инвалидируют все закэшированные страницы
// соответствующего ресурса.
package middleware

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// cacheKeyPrefix — общий префикс ключей списочного кэша.
const cacheKeyPrefix = "um:list:"

// listStore — операции хранилища, используемые списочным кэшем.
// Реализуется cache.Cache.
type listStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	InvalidatePrefix(ctx context.Context, prefix string) error
}

// ListCache кэширует ответы списочных GET endpoint'ов.
// Кэшируются только успешные (200) ответы; TTL задаётся при создании cache.Cache.
type ListCache struct {
	store  listStore
	paths  []string
	logger *slog.Logger
}

// NewListCache создаёт middleware кэширования для указанных путей.
// paths — точные пути списочных endpoint'ов, например "/api/v1/users".
func NewListCache(store listStore, paths []string, logger *slog.Logger) *ListCache {
	return &ListCache{
		store:  store,
		paths:  paths,
		logger: logger.With(slog.String("component", "list-cache")),
	}
}

// Middleware возвращает HTTP middleware кэширования.
// Кэшируется только точное совпадение со списочным путём: GET
// /api/v1/users/{id} под ключ списка не попадает. Мутации сопоставляются
// по префиксу — PATCH /api/v1/users/{id} инвалидирует страницы /api/v1/users.
func (lc *ListCache) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			resource := lc.matchResource(r.URL.Path)
			if resource == "" {
				next.ServeHTTP(w, r)
				return
			}

			if r.Method != http.MethodGet {
				// Мутация ресурса — после ответа инвалидируем его страницы
				next.ServeHTTP(w, r)
				if err := lc.store.InvalidatePrefix(r.Context(), cacheKeyPrefix+resource); err != nil {
					lc.logger.Warn("Ошибка инвалидации кэша",
						slog.String("resource", resource),
						slog.Any("error", err),
					)
				}
				return
			}

			// GET кэшируется только на корне ресурса (списочный endpoint)
			if r.URL.Path != resource {
				next.ServeHTTP(w, r)
				return
			}

			key := cacheKeyPrefix + r.URL.Path + "?" + r.URL.RawQuery

			if body, err := lc.store.Get(r.Context(), key); err == nil {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-Cache", "HIT")
				w.WriteHeader(http.StatusOK)
				w.Write(body) //nolint:errcheck
				return
			}

			rec := &cachingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r)

			// Кэшируем только успешные ответы
			if rec.statusCode == http.StatusOK && rec.body.Len() > 0 {
				if err := lc.store.Set(r.Context(), key, rec.body.Bytes()); err != nil {
					lc.logger.Warn("Ошибка записи в кэш",
						slog.String("key", key),
						slog.Any("error", err),
					)
				}
			}
		})
	}
}

// matchResource возвращает кэшируемый корень ресурса, которому
// принадлежит запрос: сам корень или любой путь под ним.
func (lc *ListCache) matchResource(reqPath string) string {
	for _, p := range lc.paths {
		if reqPath == p || strings.HasPrefix(reqPath, p+"/") {
			return p
		}
	}
	return ""
}

// cachingResponseWriter копирует тело ответа для последующей записи в кэш.
type cachingResponseWriter struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func (rw *cachingResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *cachingResponseWriter) Write(b []byte) (int, error) {
	rw.body.Write(b)
	return rw.ResponseWriter.Write(b)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *cachingResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
