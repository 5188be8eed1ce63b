//go:build !sonic

package json

import json "github.com/goccy/go-json"

var (
	Marshal   = json.Marshal
	Unmarshal = json.Unmarshal
)
