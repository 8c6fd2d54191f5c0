package textproc

import (
	"sync"

	"github.com/longbridgeapp/opencc"
	"github.com/pkg/errors"
)

// OpenCC converts with one of the bundled OpenCC configurations such as "t2s".
type OpenCC struct {
	cc *opencc.OpenCC
}

func NewOpenCC(config string) (*OpenCC, error) {
	cc, err := opencc.New(config)
	if err != nil {
		return nil, errors.Wrapf(err, "load opencc %s", config)
	}
	return &OpenCC{cc: cc}, nil
}

// Convert returns s unchanged if the conversion fails.
func (o *OpenCC) Convert(s string) string {
	out, err := o.cc.Convert(s)
	if err != nil {
		return s
	}
	return out
}

var (
	simplifiedOnce sync.Once
	simplified     *OpenCC
	simplifiedErr  error
)

// Simplified returns the shared traditional to simplified converter. 字典只加载一次
func Simplified() (*OpenCC, error) {
	simplifiedOnce.Do(func() {
		simplified, simplifiedErr = NewOpenCC("t2s")
	})
	return simplified, simplifiedErr
}
