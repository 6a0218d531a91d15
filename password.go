package cloudadapter

import (
	gocontext "context"

	"github.com/Jeffail/tunny"
	"github.com/sirupsen/logrus"
	"github.com/travis-ci/cloudadapter/context"
	"github.com/travis-ci/cloudadapter/metrics"
	"github.com/travis-ci/cloudadapter/resource"
)

// RetrievePassword asks the provider for the root password of an instance.
// It can be called any number of times; until the provider has one the
// result stays pending on the instance id.
func (s *Session) RetrievePassword(ctx gocontext.Context, id string) (resource.PasswordResult, error) {
	ctx = s.opContext(ctx, "retrieve_password")

	password, err := s.api.password(ctx, id)
	if err != nil {
		return resource.PasswordPendingResult(id), err
	}
	if password == "" {
		metrics.Mark("cloudadapter.password.pending")
		return resource.PasswordPendingResult(id), nil
	}
	return resource.PasswordReadyResult(password), nil
}

type passwordJob struct {
	ctx gocontext.Context
	id  string
}

type passwordOutcome struct {
	result resource.PasswordResult
	err    error
}

// RetrievePasswords retrieves the passwords of several instances through a
// bounded worker pool. Failed retrievals are logged and reported as pending.
func (s *Session) RetrievePasswords(ctx gocontext.Context, ids []string) (map[string]resource.PasswordResult, error) {
	pool := tunny.NewFunc(s.passwordPoolSize, func(payload interface{}) interface{} {
		job := payload.(*passwordJob)
		result, err := s.RetrievePassword(job.ctx, job.id)
		return &passwordOutcome{result: result, err: err}
	})
	defer pool.Close()

	type indexed struct {
		id      string
		outcome *passwordOutcome
		err     error
	}

	done := make(chan indexed, len(ids))
	for _, id := range ids {
		go func(id string) {
			out, err := pool.ProcessCtx(ctx, &passwordJob{ctx: ctx, id: id})
			if err != nil {
				done <- indexed{id: id, err: err}
				return
			}
			done <- indexed{id: id, outcome: out.(*passwordOutcome)}
		}(id)
	}

	logger := context.LoggerFromContext(s.opContext(ctx, "retrieve_passwords")).WithField("self", "session/password")

	results := map[string]resource.PasswordResult{}
	var ctxErr error
	for range ids {
		r := <-done
		switch {
		case r.err != nil:
			ctxErr = r.err
			results[r.id] = resource.PasswordPendingResult(r.id)
		case r.outcome.err != nil:
			logger.WithFields(logrus.Fields{
				"err":      r.outcome.err,
				"instance": r.id,
			}).Warn("couldn't retrieve password")
			results[r.id] = r.outcome.result
		default:
			results[r.id] = r.outcome.result
		}
	}

	if ctxErr != nil {
		return results, ctxErr
	}
	return results, nil
}
