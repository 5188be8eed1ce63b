//go:build sonic

package json

import "github.com/bytedance/sonic"

var (
	Marshal   = sonic.ConfigStd.Marshal
	Unmarshal = sonic.ConfigStd.Unmarshal
)
