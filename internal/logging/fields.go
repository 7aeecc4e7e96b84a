package logging

import "log/slog"

func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

func Identity(id string) slog.Attr {
	return slog.String("identity", id)
}

func Destination(d string) slog.Attr {
	return slog.String("destination", d)
}

func Attempt(n int) slog.Attr {
	return slog.Int("attempt", n)
}

func State(s string) slog.Attr {
	return slog.String("state", s)
}
