package model

import (
	"encoding/json"
	"time"
)

// Request は受取希望者による食品リストへのリクエストを表す。
// 呼び出し元が渡したペイロードはそのまま保持する。
// 食品リストとの参照整合性はストア側で強制しない。
type Request struct {
	ID        string
	UserEmail string
	Payload   map[string]any
	CreatedAt time.Time
}

// MarshalJSON はペイロードをトップレベルに展開し、_id と createdAt を付与したJSONを返す。
func (r Request) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(r.Payload)+2)
	for k, v := range r.Payload {
		doc[k] = v
	}
	doc["_id"] = r.ID
	doc["createdAt"] = r.CreatedAt
	return json.Marshal(doc)
}
