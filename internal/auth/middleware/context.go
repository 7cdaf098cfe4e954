package auth

import "context"

type ctxKey string

const ctxKeyStudent ctxKey = "student"

type StudentIdentity struct {
	Name  string
	Grade string
}

func WithStudent(ctx context.Context, name, grade string) context.Context {
	return context.WithValue(ctx, ctxKeyStudent, StudentIdentity{Name: name, Grade: grade})
}

func StudentFromContext(ctx context.Context) (StudentIdentity, bool) {
	v, ok := ctx.Value(ctxKeyStudent).(StudentIdentity)
	return v, ok
}
