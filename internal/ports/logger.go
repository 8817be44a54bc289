package ports

import (
	"time"

	"github.com/bft-labs/stageship/pkg/log"
)

// Logger is the structured logger used across internal packages.
type Logger = log.Logger

// Field is a structured log field.
type Field = log.Field

func String(key, value string) Field             { return log.String(key, value) }
func Int(key string, value int) Field            { return log.Int(key, value) }
func Int64(key string, value int64) Field        { return log.Int64(key, value) }
func Bool(key string, value bool) Field          { return log.Bool(key, value) }
func Duration(key string, d time.Duration) Field { return log.Duration(key, d) }
func Err(err error) Field                        { return log.Err(err) }
