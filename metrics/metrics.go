package metrics

import (
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/maesbri-forks-geo/gdalcubes/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// EventInfo is one structured record emitted by the engine: a chunk read,
// a warp invocation, or a non-fatal warning such as an ignored mask
// configuration or a coarsened datetime unit.
type EventInfo struct {
	Time       string        `json:"time"`
	Level      string        `json:"level"`
	Event      string        `json:"event"`
	CubeType   string        `json:"cube_type,omitempty"`
	ChunkID    int           `json:"chunk_id,omitempty"`
	Descriptor string        `json:"descriptor,omitempty"`
	Message    string        `json:"message,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
}

func (i *EventInfo) ToJSON() (string, error) {
	out, err := json.Marshal(i)
	if err != nil {
		return "", err
	}
	return string(out) + "\n", nil
}

func newEvent(level, event string) *EventInfo {
	return &EventInfo{
		Time:  time.Now().UTC().Format(utils.ISOFormat),
		Level: level,
		Event: event,
	}
}

// Info builds an informational event record.
func Info(event string) *EventInfo {
	return newEvent("info", event)
}

// Warn builds a warning record. Warnings are logged and never fatal.
func Warn(message string) *EventInfo {
	e := newEvent("warn", "warning")
	e.Message = message
	return e
}

// Error builds an error record for a failed operation.
func Error(message string) *EventInfo {
	e := newEvent("error", "error")
	e.Message = message
	return e
}

func (i *EventInfo) WithChunk(cubeType string, chunkID int) *EventInfo {
	i.CubeType = cubeType
	i.ChunkID = chunkID
	return i
}

func (i *EventInfo) WithDuration(d time.Duration) *EventInfo {
	i.Duration = d
	return i
}
