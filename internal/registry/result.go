package registry

import (
	"encoding/json"
	"fmt"
)

// Kind は登録サーバー応答の種類
type Kind int

const (
	// KindMalformed は status も error も持たない応答
	KindMalformed Kind = iota
	// KindStatus は {"status": ...} 応答
	KindStatus
	// KindError は {"error": ...} 応答
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindStatus:
		return "status"
	case KindError:
		return "error"
	default:
		return "malformed"
	}
}

// Result は登録サーバー応答を分類したもの
type Result struct {
	Kind       Kind
	Text       string
	HTTPStatus int
}

// Display はステータス表示に出す文字列を返す
func (r Result) Display() string {
	switch r.Kind {
	case KindStatus, KindError:
		return r.Text
	default:
		return fmt.Sprintf("Unexpected server response (HTTP %d)", r.HTTPStatus)
	}
}

// replyBody は /capture の応答形式
// 値の型はサーバー次第なので、フィールドごとに生のまま受け取る。
type replyBody struct {
	Status json.RawMessage `json:"status"`
	Error  json.RawMessage `json:"error"`
}

// ParseResult は応答本文を分類する
// status が真値なら status を、そうでなければ error を採用する。HTTPステータスは判定に使わない。
func ParseResult(httpStatus int, body []byte) Result {
	result := Result{Kind: KindMalformed, HTTPStatus: httpStatus}

	var reply replyBody
	if err := json.Unmarshal(body, &reply); err != nil {
		return result
	}

	if text, ok := truthyText(reply.Status); ok {
		result.Kind = KindStatus
		result.Text = text
	} else if text, ok := truthyText(reply.Error); ok {
		result.Kind = KindError
		result.Text = text
	}
	return result
}

// truthyText は値が真値なら表示用の文字列を返す
// null, false, 0, "" は偽値。文字列以外の真値はJSON表記のまま表示する。
func truthyText(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}

	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, val != ""
	case bool:
		return "true", val
	case float64:
		return string(raw), val != 0
	default:
		return string(raw), true
	}
}
