package log

import "log/slog"

func FlowID[T ~string](id T) slog.Attr {
	return slog.String("flow_id", string(id))
}

func ClientID[T ~string](id T) slog.Attr {
	return slog.String("client_id", string(id))
}

func FlowType[T ~string](typ T) slog.Attr {
	return slog.String("flow_type", string(typ))
}

func RequestID[T ~int64](id T) slog.Attr {
	return slog.Int64("request_id", int64(id))
}

func State[T ~string](state T) slog.Attr {
	return slog.String("state", string(state))
}

func Action[T ~string](action T) slog.Attr {
	return slog.String("action", string(action))
}

func Status[T ~string](status T) slog.Attr {
	return slog.String("status", string(status))
}

func Error(err error) slog.Attr {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return slog.String("error", msg)
}

func ErrorString(msg string) slog.Attr {
	return slog.String("error", msg)
}
