package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/bnema/tgpanel/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAccount struct {
	ID          int64  `json:"id"`
	APIID       string `json:"api_id"`
	APIHash     string `json:"api_hash"`
	PhoneNumber string `json:"phone_number"`
	Name        string `json:"name"`
	IsConnected bool   `json:"is_connected"`
	CreatedAt   string `json:"created_at"`
}

type fakeBackend struct {
	mu sync.Mutex

	accounts     []fakeAccount
	selected     map[int64][]int64
	running      bool
	enabled      bool
	nextRun      string
	verifyDetail string

	calls        map[string]int
	lastVerify   map[string]any
	lastSelect   map[string]any
	importedFile string
	importedData string
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()

	b := &fakeBackend{
		accounts: []fakeAccount{
			{ID: 1, APIID: "111", APIHash: "h1", PhoneNumber: "+79990000001", Name: "Main", IsConnected: true, CreatedAt: "2026-09-01T10:00:00"},
			{ID: 2, APIID: "222", APIHash: "h2", PhoneNumber: "+79990000002"},
		},
		selected: map[int64][]int64{1: {100}},
		enabled:  true,
		nextRun:  "2026-10-14T15:00:00",
		calls:    map[string]int{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/accounts/{$}", b.handle("list accounts", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{"accounts": b.accounts})
	}))
	mux.HandleFunc("POST /api/accounts/add", b.handle("add account", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if !b.hasAccount(7) {
			b.accounts = append(b.accounts, fakeAccount{
				ID: 7, APIID: body["api_id"], APIHash: body["api_hash"], PhoneNumber: body["phone_number"], Name: body["name"],
			})
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"account_id":      7,
			"phone_code_hash": "hash-" + strconv.Itoa(b.calls["add account"]),
		})
	}))
	mux.HandleFunc("POST /api/accounts/verify", b.handle("verify code", func(w http.ResponseWriter, r *http.Request) {
		b.lastVerify = map[string]any{}
		_ = json.NewDecoder(r.Body).Decode(&b.lastVerify)
		if b.verifyDetail != "" {
			respondJSON(w, http.StatusBadRequest, map[string]any{"detail": b.verifyDetail})
			return
		}
		b.setConnected(7)
		respondJSON(w, http.StatusOK, map[string]any{"status": "success", "message": "Account connected"})
	}))
	mux.HandleFunc("POST /api/accounts/import-session", b.handle("import session", func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("session_file")
		if err != nil {
			respondJSON(w, http.StatusBadRequest, map[string]any{"detail": "session_file missing"})
			return
		}
		defer func() { _ = file.Close() }()
		data, _ := io.ReadAll(file)
		b.importedFile = header.Filename
		b.importedData = string(data)
		respondJSON(w, http.StatusOK, map[string]any{"status": "success", "message": "Session imported"})
	}))
	mux.HandleFunc("DELETE /api/accounts/{id}", b.handle("delete account", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{"status": "success"})
	}))
	mux.HandleFunc("POST /api/accounts/{id}/check-status", b.handle("check connection", func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
		respondJSON(w, http.StatusOK, map[string]any{"status": "success", "is_connected": b.connected(id)})
	}))
	mux.HandleFunc("GET /api/chats/{id}", b.handle("list chats", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{"chats": []map[string]any{
			{"id": 100, "title": "News", "username": "news"},
			{"id": 200, "title": "Team"},
		}})
	}))
	mux.HandleFunc("GET /api/chats/{id}/selected", b.handle("selected chats", func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
		respondJSON(w, http.StatusOK, map[string]any{"chat_ids": b.selected[id]})
	}))
	mux.HandleFunc("POST /api/chats/select", b.handle("save chats", func(w http.ResponseWriter, r *http.Request) {
		b.lastSelect = map[string]any{}
		_ = json.NewDecoder(r.Body).Decode(&b.lastSelect)
		respondJSON(w, http.StatusOK, map[string]any{"status": "success"})
	}))
	mux.HandleFunc("POST /api/parser/start", b.handle("start run", func(w http.ResponseWriter, _ *http.Request) {
		b.running = true
		respondJSON(w, http.StatusOK, map[string]any{"status": "success"})
	}))
	mux.HandleFunc("POST /api/parser/stop", b.handle("stop run", func(w http.ResponseWriter, _ *http.Request) {
		b.running = false
		respondJSON(w, http.StatusOK, map[string]any{"status": "success", "message": "Stop signal sent"})
	}))
	mux.HandleFunc("GET /api/parser/status", b.handle("run status", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{"is_running": b.running})
	}))
	mux.HandleFunc("POST /api/parser/schedule/pause", b.handle("pause schedule", func(w http.ResponseWriter, _ *http.Request) {
		b.enabled = false
		respondJSON(w, http.StatusOK, map[string]any{"status": "success"})
	}))
	mux.HandleFunc("POST /api/parser/schedule/resume", b.handle("resume schedule", func(w http.ResponseWriter, _ *http.Request) {
		b.enabled = true
		respondJSON(w, http.StatusOK, map[string]any{"status": "success"})
	}))
	mux.HandleFunc("GET /api/parser/schedule/status", b.handle("schedule status", func(w http.ResponseWriter, _ *http.Request) {
		body := map[string]any{"enabled": b.enabled, "next_run": nil}
		if b.enabled {
			body["next_run"] = b.nextRun
		}
		respondJSON(w, http.StatusOK, body)
	}))
	mux.HandleFunc("GET /api/stats/parsing-sessions", b.handle("list sessions", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{"success": true, "sessions": []map[string]any{{
			"session_id":     "s-1",
			"started_at":     "2026-10-14T12:00:00",
			"total_chats":    2,
			"total_messages": 42,
			"success_count":  1,
			"error_count":    1,
			"skipped_count":  0,
			"accounts":       []string{"+79990000001"},
			"errors":         []map[string]any{{"chat_name": "Team", "error_type": "FLOOD_WAIT", "error_message": "wait 30s"}},
		}}})
	}))
	mux.HandleFunc("GET /api/stats/parsing-stats", b.handle("session logs", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{"success": true, "logs": []map[string]any{
			{"parsing_session_id": "s-1", "chat_id": 100, "chat_name": "News", "status": "success", "messages_found": 40, "messages_saved": 40},
		}})
	}))
	mux.HandleFunc("GET /api/stats/parsing-stats/errors", b.handle("run errors", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{"success": true, "errors": []map[string]any{
			{"parsing_session_id": "s-1", "chat_id": 200, "chat_name": "Team", "status": "error", "error_type": "FLOOD_WAIT", "error_message": "wait 30s"},
		}})
	}))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	t.Setenv("TGP_API_BASE_URL", server.URL+"/api")

	return b
}

func (b *fakeBackend) handle(name string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.calls[name]++
		fn(w, r)
	}
}

func (b *fakeBackend) Calls(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[name]
}

func (b *fakeBackend) hasAccount(id int64) bool {
	for _, account := range b.accounts {
		if account.ID == id {
			return true
		}
	}
	return false
}

func (b *fakeBackend) connected(id int64) bool {
	for _, account := range b.accounts {
		if account.ID == id {
			return account.IsConnected
		}
	}
	return false
}

func (b *fakeBackend) setConnected(id int64) {
	for i := range b.accounts {
		if b.accounts[i].ID == id {
			b.accounts[i].IsConnected = true
		}
	}
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestVersionPrintsVersion(t *testing.T) {
	newFakeBackend(t)

	stdout, _, err := executeCLI(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", stdout)
}

func TestInvalidBaseURLIsReported(t *testing.T) {
	t.Setenv("TGP_API_BASE_URL", "ftp://example.com")

	_, _, err := executeCLI(t, t.TempDir(), "parser", "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api.base_url")
}

func TestAccountListRendersAccounts(t *testing.T) {
	newFakeBackend(t)

	stdout, _, err := executeCLI(t, t.TempDir(), "account", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "accounts: 2")
	assert.Contains(t, stdout, "#1 Main")
	assert.Contains(t, stdout, "#2 +79990000002")
	assert.Contains(t, stdout, "not connected")
}

func TestAccountListJSONOutput(t *testing.T) {
	newFakeBackend(t)

	stdout, _, err := executeCLI(t, t.TempDir(), "account", "list", "--json")
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(stdout)))
	assert.Contains(t, stdout, "\"PhoneNumber\": \"+79990000001\"")
	assert.Contains(t, stdout, "\"IsConnected\": true")
}

func TestAccountDeleteCallsBackend(t *testing.T) {
	backend := newFakeBackend(t)

	stdout, _, err := executeCLI(t, t.TempDir(), "account", "delete", "--account", "2")
	require.NoError(t, err)
	assert.Contains(t, stdout, "deleted account #2")
	assert.Equal(t, 1, backend.Calls("delete account"))
}

func TestAccountDeleteRejectsBadID(t *testing.T) {
	backend := newFakeBackend(t)

	_, _, err := executeCLI(t, t.TempDir(), "account", "delete", "--account", "abc")
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Zero(t, backend.Calls("delete account"))
}

func TestAccountCheckReportsConnection(t *testing.T) {
	newFakeBackend(t)

	stdout, _, err := executeCLI(t, t.TempDir(), "account", "check", "--account", "1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "account #1: connected")
}

func TestOnboardAddThenVerifyAcrossInvocations(t *testing.T) {
	backend := newFakeBackend(t)
	home := t.TempDir()

	stdout, _, err := executeCLI(t, home, "onboard", "add",
		"--api-id", "123456",
		"--api-hash", "abcdef",
		"--phone", "+79991234567",
	)
	require.NoError(t, err)
	assert.Contains(t, stdout, "waiting for code")
	assert.Contains(t, stdout, "Код подтверждения отправлен")

	info, err := os.Stat(filepath.Join(home, ".tgpanel", "onboarding.toml"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	stdout, _, err = executeCLI(t, home, "onboard", "verify", "--code", "12345")
	require.NoError(t, err)
	assert.Contains(t, stdout, "verified")
	assert.Contains(t, stdout, "Аккаунт успешно подключен!")

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Equal(t, "12345", backend.lastVerify["phone_code"])
	assert.Equal(t, "hash-1", backend.lastVerify["phone_code_hash"])
	assert.EqualValues(t, 7, backend.lastVerify["account_id"])
}

func TestOnboardAddValidatesLocally(t *testing.T) {
	backend := newFakeBackend(t)

	_, _, err := executeCLI(t, t.TempDir(), "onboard", "add", "--api-id", "123456", "--phone", "+79991234567")
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "api_hash")
	assert.Zero(t, backend.Calls("add account"))
}

func TestOnboardExpiredCodeThenNewCode(t *testing.T) {
	backend := newFakeBackend(t)
	home := t.TempDir()

	_, _, err := executeCLI(t, home, "onboard", "add", "--api-id", "123456", "--api-hash", "abcdef", "--phone", "+79991234567")
	require.NoError(t, err)

	backend.mu.Lock()
	backend.verifyDetail = "The confirmation code has expired"
	backend.mu.Unlock()

	stdout, _, err := executeCLI(t, home, "onboard", "verify", "--code", "12345")
	require.Error(t, err)
	assert.Contains(t, stdout, "code expired")
	assert.Contains(t, stdout, "tgp onboard new-code")

	stdout, _, err = executeCLI(t, home, "onboard", "new-code")
	require.NoError(t, err)
	assert.Contains(t, stdout, "waiting for code")
	assert.Contains(t, stdout, "Новый код подтверждения отправлен")
	assert.Equal(t, 2, backend.Calls("add account"))
}

func TestOnboardPasswordRequiredKeepsCode(t *testing.T) {
	backend := newFakeBackend(t)
	home := t.TempDir()

	_, _, err := executeCLI(t, home, "onboard", "add", "--api-id", "123456", "--api-hash", "abcdef", "--phone", "+79991234567")
	require.NoError(t, err)

	backend.mu.Lock()
	backend.verifyDetail = "Two-steps verification is enabled and a password is required"
	backend.mu.Unlock()

	stdout, _, err := executeCLI(t, home, "onboard", "verify", "--code", "12345")
	require.Error(t, err)
	assert.Contains(t, stdout, "waiting for two-factor password")

	backend.mu.Lock()
	backend.verifyDetail = ""
	backend.mu.Unlock()

	stdout, _, err = executeCLI(t, home, "onboard", "verify", "--password", "hunter2")
	require.NoError(t, err)
	assert.Contains(t, stdout, "verified")

	backend.mu.Lock()
	assert.Equal(t, "12345", backend.lastVerify["phone_code"])
	assert.Equal(t, "hunter2", backend.lastVerify["password"])
	backend.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(home, ".tgpanel", "onboarding.toml"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hunter2")
}

func TestOnboardVerifyWithoutPendingAccountFails(t *testing.T) {
	backend := newFakeBackend(t)

	_, _, err := executeCLI(t, t.TempDir(), "onboard", "verify", "--code", "12345")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Zero(t, backend.Calls("verify code"))
}

func TestOnboardCancelClearsProgress(t *testing.T) {
	newFakeBackend(t)
	home := t.TempDir()

	_, _, err := executeCLI(t, home, "onboard", "add", "--api-id", "123456", "--api-hash", "abcdef", "--phone", "+79991234567")
	require.NoError(t, err)

	snapshotPath := filepath.Join(home, ".tgpanel", "onboarding.toml")
	require.FileExists(t, snapshotPath)

	stdout, _, err := executeCLI(t, home, "onboard", "cancel")
	require.NoError(t, err)
	assert.Contains(t, stdout, "onboarding cancelled")
	assert.NoFileExists(t, snapshotPath)

	stdout, _, err = executeCLI(t, home, "onboard", "status")
	require.NoError(t, err)
	assert.Contains(t, stdout, "idle")
}

func TestOnboardImportUploadsSession(t *testing.T) {
	backend := newFakeBackend(t)
	home := t.TempDir()
	sessionPath := filepath.Join(t.TempDir(), "main.session")
	require.NoError(t, os.WriteFile(sessionPath, []byte("session-bytes"), 0o600))

	stdout, _, err := executeCLI(t, home, "onboard", "import",
		"--api-id", "123456",
		"--api-hash", "abcdef",
		"--phone", "+79991234567",
		"--session", sessionPath,
	)
	require.NoError(t, err)
	assert.Contains(t, stdout, "imported")
	assert.Contains(t, stdout, "Session imported")

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Equal(t, "main.session", backend.importedFile)
	assert.Equal(t, "session-bytes", backend.importedData)
}

func TestChatsListMarksSelection(t *testing.T) {
	newFakeBackend(t)

	stdout, _, err := executeCLI(t, t.TempDir(), "chats", "list", "--account", "1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "selected 1 of 2")
	assert.Contains(t, stdout, "[x]")
	assert.Contains(t, stdout, "@news")
}

func TestChatsListRejectsDisconnectedAccount(t *testing.T) {
	newFakeBackend(t)

	_, _, err := executeCLI(t, t.TempDir(), "chats", "list", "--account", "2")
	require.ErrorIs(t, err, domain.ErrAccountNotConnected)
}

func TestChatsSelectToggleAndSave(t *testing.T) {
	backend := newFakeBackend(t)

	stdout, _, err := executeCLI(t, t.TempDir(), "chats", "select", "--account", "1", "--toggle", "200", "--save")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Выбрано чатов: 2")

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.EqualValues(t, 1, backend.lastSelect["account_id"])
	assert.Equal(t, []any{float64(100), float64(200)}, backend.lastSelect["chat_ids"])
}

func TestChatsSelectWithoutSaveDoesNotCallBackend(t *testing.T) {
	backend := newFakeBackend(t)

	stdout, _, err := executeCLI(t, t.TempDir(), "chats", "select", "--account", "1", "--toggle", "200")
	require.NoError(t, err)
	assert.Contains(t, stdout, "selection not saved")
	assert.Zero(t, backend.Calls("save chats"))
}

func TestChatsSelectRefusesEmptySave(t *testing.T) {
	backend := newFakeBackend(t)

	_, _, err := executeCLI(t, t.TempDir(), "chats", "select", "--account", "1", "--toggle", "100", "--save")
	require.ErrorIs(t, err, domain.ErrEmptySelection)
	assert.Zero(t, backend.Calls("save chats"))
}

func TestParserStatusShowsRunAndSchedule(t *testing.T) {
	backend := newFakeBackend(t)
	backend.mu.Lock()
	backend.running = true
	backend.mu.Unlock()

	stdout, _, err := executeCLI(t, t.TempDir(), "parser", "status")
	require.NoError(t, err)
	assert.Contains(t, stdout, "running")
	assert.Contains(t, stdout, "enabled")
	assert.Contains(t, stdout, "next run:")
	assert.NotContains(t, stdout, "unconfirmed")
}

func TestParserStatusReportsMalformedNextRun(t *testing.T) {
	backend := newFakeBackend(t)
	backend.mu.Lock()
	backend.nextRun = "in a while"
	backend.mu.Unlock()

	stdout, _, err := executeCLI(t, t.TempDir(), "parser", "status")
	require.NoError(t, err)
	assert.Contains(t, stdout, "formatting error")
}

func TestParserStartConfirmsRun(t *testing.T) {
	backend := newFakeBackend(t)

	stdout, _, err := executeCLI(t, t.TempDir(), "parser", "start")
	require.NoError(t, err)
	assert.Contains(t, stdout, "running")
	assert.Contains(t, stdout, "Парсинг запущен!")
	assert.Equal(t, 1, backend.Calls("start run"))
}

func TestParserStartWhileRunningIsRejectedLocally(t *testing.T) {
	backend := newFakeBackend(t)
	backend.mu.Lock()
	backend.running = true
	backend.mu.Unlock()

	_, _, err := executeCLI(t, t.TempDir(), "parser", "start")
	require.ErrorIs(t, err, domain.ErrRunAlreadyActive)
	assert.Zero(t, backend.Calls("start run"))
}

func TestParserStopWhenIdleIsRejectedLocally(t *testing.T) {
	backend := newFakeBackend(t)

	_, _, err := executeCLI(t, t.TempDir(), "parser", "stop")
	require.ErrorIs(t, err, domain.ErrRunNotActive)
	assert.Zero(t, backend.Calls("stop run"))
}

func TestParserStopSendsSignal(t *testing.T) {
	backend := newFakeBackend(t)
	backend.mu.Lock()
	backend.running = true
	backend.mu.Unlock()

	t.Setenv("TGP_POLL_STOP_SETTLE", "50ms")

	stdout, _, err := executeCLI(t, t.TempDir(), "parser", "stop")
	require.NoError(t, err)
	assert.Contains(t, stdout, "stopped")
	assert.NotContains(t, stdout, "stopping")
	assert.NotContains(t, stdout, "unconfirmed")
	assert.Equal(t, 1, backend.Calls("stop run"))
	// one status read before the action, one confirming poll after the settle delay
	assert.Equal(t, 2, backend.Calls("run status"))
}

func TestParserPauseThenResume(t *testing.T) {
	backend := newFakeBackend(t)

	stdout, _, err := executeCLI(t, t.TempDir(), "parser", "pause")
	require.NoError(t, err)
	assert.Contains(t, stdout, "paused")
	assert.Contains(t, stdout, "Автоматический запуск приостановлен.")

	stdout, _, err = executeCLI(t, t.TempDir(), "parser", "resume")
	require.NoError(t, err)
	assert.Contains(t, stdout, "enabled")
	assert.Equal(t, 1, backend.Calls("pause schedule"))
	assert.Equal(t, 1, backend.Calls("resume schedule"))
}

func TestHistorySessionsRendersCards(t *testing.T) {
	newFakeBackend(t)

	stdout, _, err := executeCLI(t, t.TempDir(), "history", "sessions", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, stdout, "sessions: 1")
	assert.Contains(t, stdout, "chats 2, messages 42")
	assert.Contains(t, stdout, "[rate limit] wait 30s")
}

func TestHistoryLogsJSON(t *testing.T) {
	newFakeBackend(t)

	stdout, _, err := executeCLI(t, t.TempDir(), "history", "logs", "--session", "s-1", "--json")
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(stdout)))
	assert.Contains(t, stdout, "\"ChatName\": \"News\"")
}

func TestHistoryErrorsListsFailures(t *testing.T) {
	newFakeBackend(t)

	stdout, _, err := executeCLI(t, t.TempDir(), "history", "errors")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Recent errors")
	assert.Contains(t, stdout, "[error] Team")
}

func executeCLI(t *testing.T, home string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", home)

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}
