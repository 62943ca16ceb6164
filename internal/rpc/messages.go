package rpc

import (
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Message is a booking.v1 message that encodes itself in protobuf wire format.
type Message interface {
	Marshal() ([]byte, error)
	Unmarshal(b []byte) error
}

type GetAvailabilityRequest struct {
	Username string
	Date     string
}

func (m *GetAvailabilityRequest) Marshal() ([]byte, error) {
	var out []byte
	out = appendString(out, 1, m.Username)
	out = appendString(out, 2, m.Date)
	return out, nil
}

func (m *GetAvailabilityRequest) Unmarshal(b []byte) error {
	*m = GetAvailabilityRequest{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return consumeString(typ, b, &m.Username)
		case 2:
			return consumeString(typ, b, &m.Date)
		}
		return 0
	})
}

type GetAvailabilityResponse struct {
	PossibleTimes  []int32
	AvailableTimes []int32
}

func (m *GetAvailabilityResponse) Marshal() ([]byte, error) {
	var out []byte
	out = appendPackedInt32(out, 1, m.PossibleTimes)
	out = appendPackedInt32(out, 2, m.AvailableTimes)
	return out, nil
}

func (m *GetAvailabilityResponse) Unmarshal(b []byte) error {
	*m = GetAvailabilityResponse{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return consumeRepeatedInt32(typ, b, &m.PossibleTimes)
		case 2:
			return consumeRepeatedInt32(typ, b, &m.AvailableTimes)
		}
		return 0
	})
}

type GetBlockedDatesRequest struct {
	Username string
	Year     int32
	Month    int32
}

func (m *GetBlockedDatesRequest) Marshal() ([]byte, error) {
	var out []byte
	out = appendString(out, 1, m.Username)
	out = appendInt32(out, 2, m.Year)
	out = appendInt32(out, 3, m.Month)
	return out, nil
}

func (m *GetBlockedDatesRequest) Unmarshal(b []byte) error {
	*m = GetBlockedDatesRequest{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return consumeString(typ, b, &m.Username)
		case 2:
			return consumeInt32(typ, b, &m.Year)
		case 3:
			return consumeInt32(typ, b, &m.Month)
		}
		return 0
	})
}

type GetBlockedDatesResponse struct {
	BlockedWeekDays []int32
	BlockedDates    []string
}

func (m *GetBlockedDatesResponse) Marshal() ([]byte, error) {
	var out []byte
	out = appendPackedInt32(out, 1, m.BlockedWeekDays)
	for _, d := range m.BlockedDates {
		out = protowire.AppendTag(out, 2, protowire.BytesType)
		out = protowire.AppendString(out, d)
	}
	return out, nil
}

func (m *GetBlockedDatesResponse) Unmarshal(b []byte) error {
	*m = GetBlockedDatesResponse{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return consumeRepeatedInt32(typ, b, &m.BlockedWeekDays)
		case 2:
			var d string
			n := consumeString(typ, b, &d)
			if n > 0 {
				m.BlockedDates = append(m.BlockedDates, d)
			}
			return n
		}
		return 0
	})
}

type TimeInterval struct {
	WeekDay   int32
	Enabled   bool
	StartTime string
	EndTime   string
}

func (m *TimeInterval) Marshal() ([]byte, error) {
	var out []byte
	out = appendInt32(out, 1, m.WeekDay)
	out = appendBool(out, 2, m.Enabled)
	out = appendString(out, 3, m.StartTime)
	out = appendString(out, 4, m.EndTime)
	return out, nil
}

func (m *TimeInterval) Unmarshal(b []byte) error {
	*m = TimeInterval{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return consumeInt32(typ, b, &m.WeekDay)
		case 2:
			return consumeBool(typ, b, &m.Enabled)
		case 3:
			return consumeString(typ, b, &m.StartTime)
		case 4:
			return consumeString(typ, b, &m.EndTime)
		}
		return 0
	})
}

type ReplaceTimeIntervalsRequest struct {
	Intervals []*TimeInterval
}

func (m *ReplaceTimeIntervalsRequest) Marshal() ([]byte, error) {
	var out []byte
	for _, iv := range m.Intervals {
		inner, err := iv.Marshal()
		if err != nil {
			return nil, err
		}
		out = appendMessage(out, 1, inner)
	}
	return out, nil
}

func (m *ReplaceTimeIntervalsRequest) Unmarshal(b []byte) error {
	*m = ReplaceTimeIntervalsRequest{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num != 1 || typ != protowire.BytesType {
			return 0
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n
		}
		iv := &TimeInterval{}
		if err := iv.Unmarshal(v); err != nil {
			return -1
		}
		m.Intervals = append(m.Intervals, iv)
		return n
	})
}

type ReplaceTimeIntervalsResponse struct{}

func (*ReplaceTimeIntervalsResponse) Marshal() ([]byte, error) { return nil, nil }
func (m *ReplaceTimeIntervalsResponse) Unmarshal(b []byte) error {
	return walk(b, func(protowire.Number, protowire.Type, []byte) int { return 0 })
}

type CreateBookingRequest struct {
	Username     string
	Name         string
	Email        string
	Observations string
	Date         *timestamppb.Timestamp
}

func (m *CreateBookingRequest) Marshal() ([]byte, error) {
	var out []byte
	out = appendString(out, 1, m.Username)
	out = appendString(out, 2, m.Name)
	out = appendString(out, 3, m.Email)
	out = appendString(out, 4, m.Observations)
	return appendTimestamp(out, 5, m.Date)
}

func (m *CreateBookingRequest) Unmarshal(b []byte) error {
	*m = CreateBookingRequest{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return consumeString(typ, b, &m.Username)
		case 2:
			return consumeString(typ, b, &m.Name)
		case 3:
			return consumeString(typ, b, &m.Email)
		case 4:
			return consumeString(typ, b, &m.Observations)
		case 5:
			return consumeTimestamp(typ, b, &m.Date)
		}
		return 0
	})
}

type CreateBookingResponse struct {
	ID string
}

func (m *CreateBookingResponse) Marshal() ([]byte, error) {
	return appendString(nil, 1, m.ID), nil
}

func (m *CreateBookingResponse) Unmarshal(b []byte) error {
	*m = CreateBookingResponse{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num == 1 {
			return consumeString(typ, b, &m.ID)
		}
		return 0
	})
}

type UpdateProfileRequest struct {
	Bio string
}

func (m *UpdateProfileRequest) Marshal() ([]byte, error) {
	return appendString(nil, 1, m.Bio), nil
}

func (m *UpdateProfileRequest) Unmarshal(b []byte) error {
	*m = UpdateProfileRequest{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num == 1 {
			return consumeString(typ, b, &m.Bio)
		}
		return 0
	})
}

type UpdateProfileResponse struct{}

func (*UpdateProfileResponse) Marshal() ([]byte, error) { return nil, nil }
func (m *UpdateProfileResponse) Unmarshal(b []byte) error {
	return walk(b, func(protowire.Number, protowire.Type, []byte) int { return 0 })
}
