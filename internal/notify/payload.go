package notify

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// DecodeRemoteMessage parses a raw transport message. Data values that are
// not strings (numbers, booleans, nested objects) are kept in their JSON
// text form, matching what the transport delivers on device.
func DecodeRemoteMessage(raw []byte) (RemoteMessage, error) {
	if !gjson.ValidBytes(raw) {
		return RemoteMessage{}, fmt.Errorf("invalid message JSON")
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return RemoteMessage{}, fmt.Errorf("message is not a JSON object")
	}

	m := RemoteMessage{
		MessageID: doc.Get("messageId").String(),
		Data:      decodeData(doc.Get("data")),
	}
	if n := doc.Get("notification"); n.IsObject() {
		m.Notification = &RemoteNotification{
			Title: n.Get("title").String(),
			Body:  n.Get("body").String(),
		}
	}
	return m, nil
}

func decodeData(v gjson.Result) map[string]string {
	data := make(map[string]string)
	if !v.IsObject() {
		return data
	}
	v.ForEach(func(key, value gjson.Result) bool {
		switch value.Type {
		case gjson.Null:
		case gjson.String:
			data[key.String()] = value.String()
		default:
			data[key.String()] = value.Raw
		}
		return true
	})
	return data
}
