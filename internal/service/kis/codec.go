package kis

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"ThemePulse/internal/domain/models"
	"ThemePulse/pkg/util"
)

const (
	trTick     = "H0STCNT0"
	trPingPong = "PINGPONG"

	minTickFields = 20

	fieldCode      = 0
	fieldTime      = 1
	fieldPrice     = 2
	fieldSign      = 3
	fieldChange    = 4
	fieldRate      = 5
	fieldCumVolume = 13
)

type FrameKind int

const (
	FrameUnknown FrameKind = iota
	FrameData
	FramePingPong
	FrameControl
)

// Frame is one decoded transport message.
type Frame struct {
	Kind  FrameKind
	TrID  string
	Ticks []models.Tick
	// Control carries the parsed JSON for control frames.
	Control *ControlMessage
}

// ControlMessage is the JSON envelope used for acks and keepalives.
type ControlMessage struct {
	Header struct {
		TrID  string `json:"tr_id"`
		TrKey string `json:"tr_key"`
	} `json:"header"`
	Body struct {
		RtCd  string `json:"rt_cd"`
		MsgCd string `json:"msg_cd"`
		Msg1  string `json:"msg1"`
	} `json:"body"`
}

// DecodeFrame classifies and decodes a raw frame. Malformed data records are
// dropped; a frame with no valid record decodes to FrameData with no ticks.
func DecodeFrame(raw []byte) Frame {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Frame{Kind: FrameUnknown}
	}
	if trimmed[0] == '{' {
		var m ControlMessage
		if err := json.Unmarshal(trimmed, &m); err != nil {
			return Frame{Kind: FrameUnknown}
		}
		if m.Header.TrID == trPingPong {
			return Frame{Kind: FramePingPong, TrID: trPingPong, Control: &m}
		}
		return Frame{Kind: FrameControl, TrID: m.Header.TrID, Control: &m}
	}

	parts := splitHeader(string(trimmed))
	if parts == nil {
		return Frame{Kind: FrameUnknown}
	}
	f := Frame{Kind: FrameData, TrID: parts[1]}
	if f.TrID != trTick {
		return f
	}
	count, err := strconv.Atoi(parts[2])
	if err != nil || count < 1 {
		count = 1
	}
	fields := strings.Split(parts[3], "^")
	per := len(fields) / count
	if per < minTickFields {
		// a short body cannot hold count records; try it as one
		per, count = len(fields), 1
	}
	for i := 0; i < count; i++ {
		if t, ok := decodeTick(fields[i*per : (i+1)*per]); ok {
			f.Ticks = append(f.Ticks, t)
		}
	}
	return f
}

// splitHeader splits encFlag|trId|count|body. The slash separator is also
// accepted for the header.
func splitHeader(s string) []string {
	for _, sep := range []string{"|", "/"} {
		parts := strings.SplitN(s, sep, 4)
		if len(parts) == 4 {
			return parts
		}
	}
	return nil
}

func decodeTick(fields []string) (models.Tick, bool) {
	if len(fields) < minTickFields {
		return models.Tick{}, false
	}
	code := strings.TrimSpace(fields[fieldCode])
	if code == "" {
		return models.Tick{}, false
	}
	sign := fields[fieldSign]
	return models.Tick{
		Code:             code,
		Price:            util.ParseFloatDefault(fields[fieldPrice], 0),
		ChangePrice:      signed(sign, util.ParseFloatDefault(fields[fieldChange], 0)),
		ChangeRate:       signed(sign, util.ParseFloatDefault(fields[fieldRate], 0)),
		CumulativeVolume: util.ParseInt64Default(fields[fieldCumVolume], 0),
		TradeTime:        fields[fieldTime],
	}, true
}

// signed applies the direction enum to a wire magnitude: 1 upper limit, 2 rise,
// 3 flat, 4 lower limit, 5 decline.
func signed(sign string, v float64) float64 {
	if v < 0 {
		v = -v
	}
	switch sign {
	case "4", "5":
		return -v
	default:
		return v
	}
}
