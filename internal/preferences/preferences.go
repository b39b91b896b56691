// Package preferences は外部の設定ストアが所有するユーザー設定を読み取り専用で提供する。
// 生産性目標、ブロック対象サイト、拡張機能APIキー、タスク完了率をYAMLファイルから読み込む。
package preferences

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hitoshi/focusboard/internal/model"
	"gopkg.in/yaml.v3"
)

// File はYAMLファイルの構造。
type File struct {
	Users []UserEntry `yaml:"users"`
}

// UserEntry は1ユーザー分の設定。
type UserEntry struct {
	ID                    string     `yaml:"id"`
	Goals                 *GoalsYAML `yaml:"goals"`
	BlockedSites          []string   `yaml:"blocked_sites"`
	APIKeySHA256          string     `yaml:"api_key_sha256"`
	TaskCompletionPercent float64    `yaml:"task_completion_percent"`
}

// GoalsYAML は生産性目標のYAML表現。
type GoalsYAML struct {
	DailyFocusGoal  int `yaml:"daily_focus_goal"`
	DailyBreaksGoal int `yaml:"daily_breaks_goal"`
	DailyTasksGoal  int `yaml:"daily_tasks_goal"`
}

type userPrefs struct {
	goals        *model.ProductivityGoals
	blockedSites []string
	taskPercent  float64
}

type apiKeyEntry struct {
	hash   []byte
	userID string
}

// Store はYAMLから読み込んだユーザー設定を保持する。読み込み後は変更されない。
type Store struct {
	users   map[string]userPrefs
	apiKeys []apiKeyEntry
}

// HashAPIKey はAPIキーをYAMLに保存する形式（SHA-256の16進表記）に変換する。
func HashAPIKey(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])
}

// LoadFile はpathのYAMLファイルから設定を読み込む。
func LoadFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open preferences file: %w", err)
	}
	defer f.Close()

	store, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load preferences file %s: %w", path, err)
	}
	return store, nil
}

// Load はrからYAMLを読み込み、検証してStoreを生成する。
// 未知のキーはエラーとする。
func Load(r io.Reader) (*Store, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read preferences: %w", err)
	}

	var file File
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse preferences: %w", err)
		}
	}

	return newStore(file)
}

func newStore(file File) (*Store, error) {
	s := &Store{users: make(map[string]userPrefs, len(file.Users))}
	seenHashes := make(map[string]string)

	for i, u := range file.Users {
		id := strings.TrimSpace(u.ID)
		if id == "" {
			return nil, fmt.Errorf("users[%d]: id is required", i)
		}
		if _, dup := s.users[id]; dup {
			return nil, fmt.Errorf("users[%d]: duplicate id %q", i, id)
		}

		prefs := userPrefs{
			blockedSites: normalizeSites(u.BlockedSites),
			taskPercent:  u.TaskCompletionPercent,
		}
		if u.TaskCompletionPercent < 0 || u.TaskCompletionPercent > 100 {
			return nil, fmt.Errorf("users[%d]: task_completion_percent must be between 0 and 100", i)
		}
		if u.Goals != nil {
			if u.Goals.DailyFocusGoal < 0 || u.Goals.DailyBreaksGoal < 0 || u.Goals.DailyTasksGoal < 0 {
				return nil, fmt.Errorf("users[%d]: goals must not be negative", i)
			}
			prefs.goals = &model.ProductivityGoals{
				DailyFocusGoal:  u.Goals.DailyFocusGoal,
				DailyBreaksGoal: u.Goals.DailyBreaksGoal,
				DailyTasksGoal:  u.Goals.DailyTasksGoal,
			}
		}

		if u.APIKeySHA256 != "" {
			hashHex := strings.ToLower(strings.TrimSpace(u.APIKeySHA256))
			hash, err := hex.DecodeString(hashHex)
			if err != nil || len(hash) != sha256.Size {
				return nil, fmt.Errorf("users[%d]: api_key_sha256 must be a hex encoded SHA-256 digest", i)
			}
			if owner, dup := seenHashes[hashHex]; dup {
				return nil, fmt.Errorf("users[%d]: api key already assigned to %q", i, owner)
			}
			seenHashes[hashHex] = id
			s.apiKeys = append(s.apiKeys, apiKeyEntry{hash: hash, userID: id})
		}

		s.users[id] = prefs
	}

	return s, nil
}

// normalizeSites はホスト名を小文字化し、空要素と重複を取り除く。
func normalizeSites(sites []string) []string {
	out := make([]string, 0, len(sites))
	seen := make(map[string]bool, len(sites))
	for _, site := range sites {
		site = strings.ToLower(strings.TrimSpace(site))
		if site == "" || seen[site] {
			continue
		}
		seen[site] = true
		out = append(out, site)
	}
	return out
}

// Goals はユーザーの生産性目標を返す。未設定の場合はnilを返す。
func (s *Store) Goals(ctx context.Context, userID string) (*model.ProductivityGoals, error) {
	prefs, ok := s.users[userID]
	if !ok || prefs.goals == nil {
		return nil, nil
	}
	g := *prefs.goals
	return &g, nil
}

// BlockedSites はユーザーのブロック対象サイト一覧を返す。
func (s *Store) BlockedSites(ctx context.Context, userID string) ([]string, error) {
	prefs, ok := s.users[userID]
	if !ok {
		return []string{}, nil
	}
	return append([]string{}, prefs.blockedSites...), nil
}

// TaskCompletionPercent は今日のタスク完了率を返す。未設定の場合は0。
func (s *Store) TaskCompletionPercent(ctx context.Context, userID string) (float64, error) {
	return s.users[userID].taskPercent, nil
}

// UserIDByAPIKey はAPIキーに対応するユーザーIDを返す。見つからない場合は空文字を返す。
// 比較は定数時間で行い、一致の有無にかかわらず全エントリを走査する。
func (s *Store) UserIDByAPIKey(ctx context.Context, apiKey string) (string, error) {
	if apiKey == "" {
		return "", nil
	}
	sum := sha256.Sum256([]byte(apiKey))

	userID := ""
	for _, entry := range s.apiKeys {
		if subtle.ConstantTimeCompare(sum[:], entry.hash) == 1 {
			userID = entry.userID
		}
	}
	return userID, nil
}
