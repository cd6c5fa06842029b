package ctxutil

import "context"

type requestDataKey struct{}

// RequestData carries the authenticated caller, if any.
type RequestData struct {
	UserID uint
	Email  string
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(Default(ctx), requestDataKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	if ctx == nil {
		return nil
	}
	if rd, ok := ctx.Value(requestDataKey{}).(*RequestData); ok {
		return rd
	}
	return nil
}

// UserIDFrom returns the caller's user id, or nil for anonymous requests.
func UserIDFrom(ctx context.Context) *uint {
	rd := GetRequestData(ctx)
	if rd == nil || rd.UserID == 0 {
		return nil
	}
	id := rd.UserID
	return &id
}
