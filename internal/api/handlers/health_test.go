package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

// stubChecker — подставная проверка готовности.
type stubChecker struct {
	status  string
	message string
}

func (s *stubChecker) CheckReady() (string, string) {
	return s.status, s.message
}

func TestHealthLive(t *testing.T) {
	h := NewHealthHandler(nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	h.HealthLive(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("статус = %d, ожидается 200", rec.Code)
	}

	var resp healthLiveResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Ошибка декодирования ответа: %v", err)
	}
	if resp.Status != "ok" || resp.Service != "user-module" {
		t.Errorf("неожиданный ответ: %+v", resp)
	}
}

func TestHealthReady(t *testing.T) {
	tests := []struct {
		name       string
		pg         ReadinessChecker
		kc         ReadinessChecker
		redis      ReadinessChecker
		wantStatus int
		wantOveral string
	}{
		{
			name:       "все зависимости доступны",
			pg:         &stubChecker{status: "ok"},
			kc:         &stubChecker{status: "ok"},
			redis:      &stubChecker{status: "ok"},
			wantStatus: http.StatusOK,
			wantOveral: "ok",
		},
		{
			name:       "PostgreSQL недоступен",
			pg:         &stubChecker{status: "fail", message: "connection refused"},
			kc:         &stubChecker{status: "ok"},
			wantStatus: http.StatusServiceUnavailable,
			wantOveral: "fail",
		},
		{
			name:       "Keycloak degraded",
			pg:         &stubChecker{status: "ok"},
			kc:         &stubChecker{status: "degraded", message: "медленный ответ"},
			wantStatus: http.StatusOK,
			wantOveral: "degraded",
		},
		{
			// Redis не влияет на итоговый статус: кэш опционален
			name:       "Redis недоступен",
			pg:         &stubChecker{status: "ok"},
			kc:         &stubChecker{status: "ok"},
			redis:      &stubChecker{status: "fail", message: "connection refused"},
			wantStatus: http.StatusOK,
			wantOveral: "ok",
		},
		{
			name:       "checker не инициализирован",
			pg:         nil,
			kc:         &stubChecker{status: "ok"},
			wantStatus: http.StatusServiceUnavailable,
			wantOveral: "fail",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.pg, tt.kc, tt.redis)

			req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
			rec := httptest.NewRecorder()
			h.HealthReady(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("статус = %d, ожидается %d", rec.Code, tt.wantStatus)
			}

			var resp healthReadyResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("Ошибка декодирования ответа: %v", err)
			}
			if resp.Status != tt.wantOveral {
				t.Errorf("итоговый статус = %q, ожидается %q", resp.Status, tt.wantOveral)
			}
		})
	}
}

func TestHealthReady_RedisDisabled(t *testing.T) {
	h := NewHealthHandler(&stubChecker{status: "ok"}, &stubChecker{status: "ok"}, nil)

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	h.HealthReady(rec, req)

	var resp healthReadyResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Ошибка декодирования ответа: %v", err)
	}
	if resp.Checks.Redis.Status != "disabled" {
		t.Errorf("статус Redis = %q, ожидается disabled", resp.Checks.Redis.Status)
	}
}

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		statuses []string
		want     string
	}{
		{[]string{"ok", "ok"}, "ok"},
		{[]string{"ok", "degraded"}, "degraded"},
		{[]string{"degraded", "fail"}, "fail"},
		{[]string{"fail", "ok"}, "fail"},
		{nil, "ok"},
	}

	for _, tt := range tests {
		if got := overallStatus(tt.statuses...); got != tt.want {
			t.Errorf("overallStatus(%v) = %q, ожидается %q", tt.statuses, got, tt.want)
		}
	}
}

func TestParsePositiveParam(t *testing.T) {
	tests := []struct {
		query   string
		def     int
		want    int
		wantErr bool
	}{
		// Отсутствующий параметр — значение по умолчанию
		{"", 20, 20, false},
		{"page=5", 20, 5, false},
		// Явно переданные некорректные значения — ошибка, не дефолт
		{"page=0", 20, 0, true},
		{"page=-3", 20, 0, true},
		{"page=abc", 20, 0, true},
		{"page=", 20, 0, true},
	}

	for _, tt := range tests {
		q, err := url.ParseQuery(tt.query)
		if err != nil {
			t.Fatalf("ParseQuery(%q): %v", tt.query, err)
		}
		got, err := parsePositiveParam(q, "page", tt.def)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parsePositiveParam(%q) — ожидалась ошибка, получено %d", tt.query, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parsePositiveParam(%q): %v", tt.query, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parsePositiveParam(%q) = %d, ожидается %d", tt.query, got, tt.want)
		}
	}
}
