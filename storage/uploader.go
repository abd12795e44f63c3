package storage

import (
	"context"
	"io"
	"strconv"
)

const ContentTypeJSON = "application/json"

type UploadResult struct {
	Key      string
	Location string
	ETag     string
}

// FileUploader хранит архивы истории счета завершенных матчей.
// Повторная загрузка по тому же ключу перезаписывает объект.
type FileUploader interface {
	Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error)
	GetPublicURL(key string) string
}

// ScoreHistoryKey - ключ архива истории счета матча.
func ScoreHistoryKey(matchID int) string {
	return "matches/" + strconv.Itoa(matchID) + "/score-history.json"
}
