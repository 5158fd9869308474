package food

import (
	"fmt"
	"strings"

	"github.com/hitoshi/foodshare/internal/model"
)

// immutableKeys は更新リクエストに含まれていても無視するキー。
var immutableKeys = map[string]bool{
	"_id":       true,
	"id":        true,
	"createdAt": true,
}

// aliasKeys は同じフィールドを指す別名の組。
var aliasKeys = [][2]string{
	{"donorName", "userName"},
	{"donorEmail", "userEmail"},
	{"donorImage", "userImage"},
}

// buildPatch はJSONから読み取ったフィールドを型付きのFoodPatchに変換する。
// 既知のキーは対応するフィールドへ、それ以外はExtraへ入れる。
func (s *Service) buildPatch(fields map[string]any) (*model.FoodPatch, error) {
	patch := &model.FoodPatch{}

	// 別名が両方あると書き込む値がマップの走査順で変わるため拒否する
	for _, pair := range aliasKeys {
		_, a := fields[pair[0]]
		_, b := fields[pair[1]]
		if a && b {
			return nil, model.NewInvalidRequestError(fmt.Sprintf("%s と %s は同時に指定できません", pair[0], pair[1]))
		}
	}

	for key, value := range fields {
		if immutableKeys[key] {
			continue
		}

		switch key {
		case "foodName":
			v, err := s.textField(key, value)
			if err != nil {
				return nil, err
			}
			patch.FoodName = &v
		case "foodImage":
			v, err := stringField(key, value)
			if err != nil {
				return nil, err
			}
			v = s.sanitizer.SanitizeURL(v)
			patch.FoodImage = &v
		case "quantity":
			// 数量は渡された値をそのまま保存する
			if value == nil {
				return nil, model.NewInvalidQuantityError(value)
			}
			patch.Quantity = value
		case "location":
			v, err := s.textField(key, value)
			if err != nil {
				return nil, err
			}
			patch.Location = &v
		case "expireAt":
			t, err := model.ParseExpireAt(value)
			if err != nil {
				return nil, model.NewInvalidDateError(fmt.Sprint(value))
			}
			patch.ExpireAt = &t
		case "note":
			v, err := s.textField(key, value)
			if err != nil {
				return nil, err
			}
			patch.Note = &v
		case "donorName", "userName":
			v, err := s.textField(key, value)
			if err != nil {
				return nil, err
			}
			patch.DonorName = &v
		case "donorEmail", "userEmail":
			v, err := stringField(key, value)
			if err != nil {
				return nil, err
			}
			v = strings.TrimSpace(v)
			patch.DonorEmail = &v
		case "donorImage", "userImage":
			v, err := stringField(key, value)
			if err != nil {
				return nil, err
			}
			v = s.sanitizer.SanitizeURL(v)
			patch.DonorImage = &v
		case "foodStatus":
			str, _ := value.(string)
			status := model.FoodStatus(str)
			if !status.Valid() {
				return nil, model.NewInvalidStatusError(value)
			}
			patch.FoodStatus = &status
		default:
			if key == "" || strings.HasPrefix(key, "$") || strings.Contains(key, ".") {
				return nil, model.NewInvalidRequestError(fmt.Sprintf("使用できないフィールド名です: %q", key))
			}
			if patch.Extra == nil {
				patch.Extra = make(map[string]any)
			}
			patch.Extra[key] = value
		}
	}

	if patch.IsEmpty() {
		return nil, model.NewEmptyPatchError()
	}
	return patch, nil
}

// textField は文字列フィールドを取り出し、HTMLを除去する。
func (s *Service) textField(key string, value any) (string, error) {
	v, err := stringField(key, value)
	if err != nil {
		return "", err
	}
	return s.sanitizer.SanitizeText(v), nil
}

func stringField(key string, value any) (string, error) {
	v, ok := value.(string)
	if !ok {
		return "", model.NewInvalidRequestError(fmt.Sprintf("%s は文字列で指定してください", key))
	}
	return v, nil
}
