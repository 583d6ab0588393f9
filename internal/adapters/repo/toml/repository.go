package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bnema/tgpanel/internal/domain"
	"github.com/bnema/tgpanel/internal/ports"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	OnboardingPathKey = "onboarding.path"

	stateFileMode   = 0o600
	stateDirMode    = 0o700
	stateConfigDir  = ".tgpanel"
	stateFile       = "onboarding.toml"
	tempFilePattern = ".onboarding-*.toml.tmp"
)

// Repository stores the onboarding snapshot between CLI invocations.
type Repository struct {
	path  string
	mu    *sync.RWMutex
	clock ports.Clock
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.OnboardingRepository = (*Repository)(nil)

func NewRepository(cfg *viper.Viper) (*Repository, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	cfg.SetDefault(OnboardingPathKey, filepath.Join(homeDir, stateConfigDir, stateFile))

	path := cfg.GetString(OnboardingPathKey)
	if path == "" {
		return nil, errors.New("onboarding path is empty")
	}
	path, err = normalizePath(path)
	if err != nil {
		return nil, err
	}

	return &Repository{path: path, mu: lockForPath(path), clock: ports.SystemClock{}}, nil
}

func (r *Repository) Path() string {
	return r.path
}

func (r *Repository) Load(ctx context.Context) (domain.OnboardingState, error) {
	if err := ctx.Err(); err != nil {
		return domain.OnboardingState{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return domain.OnboardingState{}, err
	}

	return fromSchema(file), nil
}

func (r *Repository) Save(ctx context.Context, state domain.OnboardingState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file := toSchema(state)
	file.Onboarding.UpdatedAt = r.clock.Now().UTC().Format(time.RFC3339)

	return r.writeSchema(file)
}

// Clear removes the snapshot. Clearing a missing snapshot is not an error.
func (r *Repository) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove onboarding file: %w", err)
	}
	return nil
}

func (r *Repository) readSchema() (fileSchema, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			file := fileSchema{}
			file.applyDefaults()
			return file, nil
		}
		return fileSchema{}, fmt.Errorf("read onboarding file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode onboarding file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return fileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func (r *Repository) writeSchema(file fileSchema) error {
	file.applyDefaults()

	if err := os.MkdirAll(filepath.Dir(r.path), stateDirMode); err != nil {
		return fmt.Errorf("create onboarding directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode onboarding file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(r.path), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp onboarding file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp onboarding file: %w", err)
	}

	if err := tempFile.Chmod(stateFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp onboarding file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp onboarding file: %w", err)
	}

	if err := os.Rename(tempName, r.path); err != nil {
		return fmt.Errorf("replace onboarding file: %w", err)
	}

	cleanup = false

	if err := os.Chmod(r.path, stateFileMode); err != nil {
		return fmt.Errorf("chmod onboarding file: %w", err)
	}

	return nil
}

func normalizePath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve onboarding path: %w", err)
	}

	return filepath.Clean(absPath), nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}

func toSchema(state domain.OnboardingState) fileSchema {
	file := fileSchema{
		Version: currentSchemaVersion,
		Onboarding: onboardingSchema{
			Phase:         string(state.Phase),
			AccountID:     int64(state.Pending.AccountID),
			CodeHash:      state.Pending.CodeHash,
			Code:          state.Pending.Code,
			NoticeLevel:   string(state.Notice.Level),
			NoticeText:    state.Notice.Text,
			FailureReason: state.FailureReason,
		},
	}
	if state.Import != nil {
		file.Import = &importSchema{
			PhoneNumber: state.Import.Credentials.PhoneNumber,
			Name:        state.Import.Credentials.Name,
			Filename:    state.Import.Filename,
		}
	}
	return file
}

func fromSchema(file fileSchema) domain.OnboardingState {
	state := domain.OnboardingState{
		Phase: domain.OnboardingPhase(file.Onboarding.Phase),
		Pending: domain.PendingVerification{
			AccountID: domain.AccountID(file.Onboarding.AccountID),
			CodeHash:  file.Onboarding.CodeHash,
			Code:      file.Onboarding.Code,
		},
		Notice: domain.Notice{
			Level: domain.NoticeLevel(file.Onboarding.NoticeLevel),
			Text:  file.Onboarding.NoticeText,
		},
		FailureReason: file.Onboarding.FailureReason,
	}
	if file.Import != nil {
		state.Import = &domain.SessionImportRequest{
			Credentials: domain.Credentials{
				PhoneNumber: file.Import.PhoneNumber,
				Name:        file.Import.Name,
			},
			Filename: file.Import.Filename,
		}
	}
	return state
}
