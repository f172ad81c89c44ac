package service_test

import (
	"context"
	"fmt"
	"strings"
	"sync"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"github.com/openlms/studio/internal/config"
	"github.com/openlms/studio/internal/contentstore"
	"github.com/openlms/studio/internal/coursekey"
	"github.com/openlms/studio/internal/events"
	"github.com/openlms/studio/internal/modulestore"
	"github.com/openlms/studio/internal/rerun/jobs"
	"github.com/openlms/studio/internal/service"
	st "github.com/openlms/studio/internal/store"
	"github.com/openlms/studio/internal/store/model"
)

// collectWriter records the cloudevents handed to it.
type collectWriter struct {
	lock   sync.Mutex
	events []cloudevents.Event
}

func (w *collectWriter) Write(_ context.Context, _ string, e cloudevents.Event) error {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.events = append(w.events, e)
	return nil
}

func (w *collectWriter) Close(_ context.Context) error { return nil }

func (w *collectWriter) count() int {
	w.lock.Lock()
	defer w.lock.Unlock()
	return len(w.events)
}

// brokenBackend persists the course rows and then reports a failure, leaving
// partial destination state behind for the coordinator to clean up.
type brokenBackend struct {
	modulestore.Backend
}

func (b *brokenBackend) CreateCourse(ctx context.Context, key coursekey.Key, username string, tree *modulestore.CourseTree) (*modulestore.Course, error) {
	if _, err := b.Backend.CreateCourse(ctx, key, username, tree); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("storage write interrupted")
}

func courseFixture() *modulestore.CourseTree {
	return &modulestore.CourseTree{
		Root: "course",
		Blocks: []modulestore.Block{
			{ID: "course", Category: "course", DisplayName: "Intro to CS", Children: []string{"chapter1"}},
			{ID: "chapter1", Category: "chapter", DisplayName: "Week 1"},
		},
	}
}

var _ = Describe("rerun coordinator", Ordered, func() {
	var (
		gormdb   *gorm.DB
		s        st.Store
		assets   *contentstore.MemoryStore
		document *modulestore.DocumentBackend
		split    *modulestore.SplitBackend
		courses  *modulestore.MixedStore
		svc      *service.RerunService

		source      = coursekey.New("edX", "CS101", "2015_Q1")
		destination = coursekey.New("edX", "CS101", "2015_Q2")
	)

	args := jobs.RerunArgs{
		SourceKey:      source.String(),
		DestinationKey: destination.String(),
		Username:       "instructor",
		DisplayName:    "2015 Rerun",
	}

	BeforeAll(func() {
		db, err := st.InitDB(config.NewDefault())
		Expect(err).To(BeNil())
		gormdb = db

		s = st.NewStore(db)
		Expect(s.InitialMigration()).To(BeNil())

		document = modulestore.NewDocumentBackend(db)
		split = modulestore.NewSplitBackend(db)
		Expect(document.InitialMigration()).To(BeNil())
		Expect(split.InitialMigration()).To(BeNil())
	})

	AfterAll(func() {
		s.Close()
	})

	BeforeEach(func() {
		assets = contentstore.NewMemoryStore()

		var err error
		courses, err = modulestore.NewMixedStore(assets, modulestore.SplitBackendName, document, split)
		Expect(err).To(BeNil())
		svc = service.NewRerunService(s, courses, nil)

		_, err = split.CreateCourse(context.TODO(), source, "instructor", courseFixture())
		Expect(err).To(BeNil())
	})

	AfterEach(func() {
		gormdb.Exec("DELETE FROM rerun_attempts;")
		gormdb.Exec("DELETE FROM course_roles;")
		gormdb.Exec("DELETE FROM course_documents;")
		gormdb.Exec("DELETE FROM course_indexes;")
		gormdb.Exec("DELETE FROM course_structures;")
	})

	initiate := func() *model.RerunAttempt {
		attempt, err := s.Rerun().Initiated(context.TODO(), source, destination, args.Username, args.DisplayName)
		Expect(err).To(BeNil())
		return attempt
	}

	latestAttempt := func() *model.RerunAttempt {
		attempt, err := s.Rerun().FindFirst(context.TODO(), st.NewRerunQueryFilter().ByDestination(destination))
		Expect(err).To(BeNil())
		return attempt
	}

	Context("success", func() {
		It("clones the course, grants author access and finishes the attempt", func() {
			initiate()

			Expect(svc.Execute(context.TODO(), args)).To(Equal(service.OutcomeSucceeded))

			course, err := courses.GetCourse(context.TODO(), destination)
			Expect(err).To(BeNil())
			Expect(course.Backend).To(Equal(modulestore.SplitBackendName))

			ok, err := s.CourseRole().HasAuthorAccess(context.TODO(), args.Username, destination)
			Expect(err).To(BeNil())
			Expect(ok).To(BeTrue())

			Expect(latestAttempt().State).To(Equal(model.RerunStateSucceeded))
		})

		It("applies field overrides to the new course run", func() {
			initiate()

			withFields := args
			withFields.FieldsJSON = `{"display_name": "2015 Rerun"}`
			Expect(svc.Execute(context.TODO(), withFields)).To(Equal(service.OutcomeSucceeded))

			course, err := courses.GetCourse(context.TODO(), destination)
			Expect(err).To(BeNil())
			Expect(course.DisplayName).To(Equal("2015 Rerun"))

			original, err := courses.GetCourse(context.TODO(), source)
			Expect(err).To(BeNil())
			Expect(original.DisplayName).To(Equal("Intro to CS"))
		})

		It("copies the course assets", func() {
			initiate()

			name := "with%percent.jpg"
			Expect(assets.Put(context.TODO(), source, contentstore.StaticAsset{
				DisplayName: name, Data: []byte("jpg"),
			})).To(BeNil())

			Expect(svc.Execute(context.TODO(), args)).To(Equal(service.OutcomeSucceeded))

			copied, err := assets.Get(context.TODO(), destination, name)
			Expect(err).To(BeNil())
			Expect(copied.DisplayName).To(Equal(name))
		})

		It("emits a terminal event", func() {
			initiate()

			writer := &collectWriter{}
			producer := events.NewEventProducer(writer)
			defer producer.Close()

			svc = service.NewRerunService(s, courses, producer)
			Expect(svc.Execute(context.TODO(), args)).To(Equal(service.OutcomeSucceeded))

			Eventually(writer.count).Should(Equal(1))
			Expect(writer.events[0].Type()).To(Equal(events.RerunMessageKind))
		})
	})

	Context("duplicate detection", func() {
		It("rejects an attempt whose destination is reserved by another request", func() {
			live := initiate()

			foreign := args
			foreign.Username = "someone-else"
			Expect(svc.Execute(context.TODO(), foreign)).To(Equal(service.OutcomeDuplicate))

			// the live attempt is untouched; the rejection is an audit row
			pending, err := s.Rerun().FindFirst(context.TODO(),
				st.NewRerunQueryFilter().ByDestination(destination).ByState(model.RerunStatePending))
			Expect(err).To(BeNil())
			Expect(pending.ID).To(Equal(live.ID))

			failed, err := s.Rerun().FindFirst(context.TODO(),
				st.NewRerunQueryFilter().ByDestination(destination).ByState(model.RerunStateFailed))
			Expect(err).To(BeNil())
			Expect(failed.StateInfo).To(Equal(service.OutcomeDuplicate))
		})

		It("does not delete a destination it did not create", func() {
			initiate()

			// the destination materializes between intent and clone
			_, err := document.CreateCourse(context.TODO(), destination, "someone-else", courseFixture())
			Expect(err).To(BeNil())

			Expect(svc.Execute(context.TODO(), args)).To(Equal(service.OutcomeDuplicate))

			// the pre-existing course survives
			found, err := courses.HasCourse(context.TODO(), destination)
			Expect(err).To(BeNil())
			Expect(found).To(BeTrue())

			Expect(latestAttempt().State).To(Equal(model.RerunStateFailed))
			Expect(latestAttempt().StateInfo).To(Equal(service.OutcomeDuplicate))
		})
	})

	Context("failure", func() {
		It("records an exception when the attempt was never initiated", func() {
			outcome := svc.Execute(context.TODO(), args)
			Expect(outcome).To(HavePrefix(service.OutcomeExceptionPrefix))
			Expect(outcome).To(ContainSubstring("not initiated"))

			Expect(latestAttempt().State).To(Equal(model.RerunStateFailed))
		})

		It("fails when the source course does not exist", func() {
			missing := coursekey.New("edX", "Ghost", "2015")
			attemptArgs := args
			attemptArgs.SourceKey = missing.String()

			_, err := s.Rerun().Initiated(context.TODO(), missing, destination, args.Username, args.DisplayName)
			Expect(err).To(BeNil())

			outcome := svc.Execute(context.TODO(), attemptArgs)
			Expect(outcome).To(HavePrefix(service.OutcomeExceptionPrefix))

			Expect(latestAttempt().State).To(Equal(model.RerunStateFailed))
		})

		It("cleans up the partially created destination", func() {
			initiate()

			broken, err := modulestore.NewMixedStore(assets, modulestore.SplitBackendName,
				document, &brokenBackend{Backend: split})
			Expect(err).To(BeNil())
			svc = service.NewRerunService(s, broken, nil)

			outcome := svc.Execute(context.TODO(), args)
			Expect(outcome).To(HavePrefix(service.OutcomeExceptionPrefix))
			Expect(outcome).To(ContainSubstring("storage write interrupted"))

			// the partial destination is gone
			found, err := courses.HasCourse(context.TODO(), destination)
			Expect(err).To(BeNil())
			Expect(found).To(BeFalse())

			attempt := latestAttempt()
			Expect(attempt.State).To(Equal(model.RerunStateFailed))
			Expect(attempt.StateInfo).To(ContainSubstring("storage write interrupted"))
		})

		It("rejects malformed field overrides", func() {
			initiate()

			bad := args
			bad.FieldsJSON = "not json"
			outcome := svc.Execute(context.TODO(), bad)
			Expect(outcome).To(HavePrefix(service.OutcomeExceptionPrefix))
		})

		It("allows a fresh attempt after a failed one", func() {
			initiate()

			broken, err := modulestore.NewMixedStore(assets, modulestore.SplitBackendName,
				document, &brokenBackend{Backend: split})
			Expect(err).To(BeNil())

			outcome := service.NewRerunService(s, broken, nil).Execute(context.TODO(), args)
			Expect(outcome).To(HavePrefix(service.OutcomeExceptionPrefix))

			// the retry against the healthy store wins
			initiate()
			Expect(svc.Execute(context.TODO(), args)).To(Equal(service.OutcomeSucceeded))
			Expect(latestAttempt().State).To(Equal(model.RerunStateSucceeded))
		})
	})

	Context("argument parsing", func() {
		It("folds a bad source key into the outcome", func() {
			bad := args
			bad.SourceKey = "not-a-course-key"
			outcome := svc.Execute(context.TODO(), bad)
			Expect(outcome).To(HavePrefix(service.OutcomeExceptionPrefix))
			Expect(strings.Contains(outcome, "invalid course key")).To(BeTrue())
		})
	})
})
