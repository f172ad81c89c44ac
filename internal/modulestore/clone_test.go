package modulestore_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"github.com/openlms/studio/internal/config"
	"github.com/openlms/studio/internal/contentstore"
	"github.com/openlms/studio/internal/coursekey"
	"github.com/openlms/studio/internal/modulestore"
	"github.com/openlms/studio/internal/store"
)

func fixtureTree() *modulestore.CourseTree {
	return &modulestore.CourseTree{
		Root: "course",
		Blocks: []modulestore.Block{
			{ID: "course", Category: "course", DisplayName: "Intro to CS", Children: []string{"chapter1", "chapter2"}},
			{ID: "chapter1", Category: "chapter", DisplayName: "Week 1", Children: []string{"html1"},
				Fields: map[string]any{"start": "2015-01-01"}},
			{ID: "chapter2", Category: "chapter", DisplayName: "Week 2"},
			{ID: "html1", Category: "html", DisplayName: "Welcome",
				Fields: map[string]any{"data": "<p>hello</p>"}},
		},
	}
}

var _ = Describe("mixed store", Ordered, func() {
	var (
		gormdb   *gorm.DB
		assets   *contentstore.MemoryStore
		document *modulestore.DocumentBackend
		split    *modulestore.SplitBackend

		source      = coursekey.New("edX", "CS101", "2015_Q1")
		destination = coursekey.New("edX", "CS101", "2015_Q2")
	)

	BeforeAll(func() {
		db, err := store.InitDB(config.NewDefault())
		Expect(err).To(BeNil())
		gormdb = db

		document = modulestore.NewDocumentBackend(db)
		split = modulestore.NewSplitBackend(db)
		Expect(document.InitialMigration()).To(BeNil())
		Expect(split.InitialMigration()).To(BeNil())
	})

	BeforeEach(func() {
		assets = contentstore.NewMemoryStore()
	})

	AfterEach(func() {
		gormdb.Exec("DELETE FROM course_documents;")
		gormdb.Exec("DELETE FROM course_indexes;")
		gormdb.Exec("DELETE FROM course_structures;")
	})

	// mixedStore builds a facade over both backends with the given default.
	mixedStore := func(defaultName string) *modulestore.MixedStore {
		s, err := modulestore.NewMixedStore(assets, defaultName, document, split)
		Expect(err).To(BeNil())
		return s
	}

	backendByName := func(name string) modulestore.Backend {
		if name == modulestore.DocumentBackendName {
			return document
		}
		return split
	}

	Context("clone", func() {
		// every combination of source and destination backend
		for _, src := range []string{modulestore.DocumentBackendName, modulestore.SplitBackendName} {
			for _, dst := range []string{modulestore.DocumentBackendName, modulestore.SplitBackendName} {
				src, dst := src, dst
				It(fmt.Sprintf("copies a course from %s to %s", src, dst), func() {
					_, err := backendByName(src).CreateCourse(context.TODO(), source, "instructor", fixtureTree())
					Expect(err).To(BeNil())

					course, err := mixedStore(dst).CloneCourse(context.TODO(), source, destination, "instructor", nil)
					Expect(err).To(BeNil())
					Expect(course.Key).To(Equal(destination))
					Expect(course.Backend).To(Equal(dst))
					Expect(course.DisplayName).To(Equal("Intro to CS"))

					exported, err := backendByName(dst).ExportCourse(context.TODO(), destination)
					Expect(err).To(BeNil())
					Expect(exported.Root).To(Equal("course"))
					Expect(exported.Blocks).To(HaveLen(4))

					// the source survives untouched
					original, err := backendByName(src).ExportCourse(context.TODO(), source)
					Expect(err).To(BeNil())
					Expect(original.Blocks).To(HaveLen(4))
				})
			}
		}

		It("applies field overrides to the destination root only", func() {
			_, err := split.CreateCourse(context.TODO(), source, "instructor", fixtureTree())
			Expect(err).To(BeNil())

			course, err := mixedStore(modulestore.SplitBackendName).CloneCourse(
				context.TODO(), source, destination, "instructor",
				modulestore.FieldOverrides{"display_name": "2015 Rerun"})
			Expect(err).To(BeNil())
			Expect(course.DisplayName).To(Equal("2015 Rerun"))

			original, err := split.GetCourse(context.TODO(), source)
			Expect(err).To(BeNil())
			Expect(original.DisplayName).To(Equal("Intro to CS"))
		})

		It("copies every asset and preserves reserved characters in names", func() {
			_, err := split.CreateCourse(context.TODO(), source, "instructor", fixtureTree())
			Expect(err).To(BeNil())

			name := "percent%sign.jpg"
			Expect(assets.Put(context.TODO(), source, contentstore.StaticAsset{
				DisplayName: name,
				ContentType: "image/jpeg",
				Data:        []byte{0xff, 0xd8, 0xff},
			})).To(BeNil())

			_, err = mixedStore(modulestore.SplitBackendName).CloneCourse(context.TODO(), source, destination, "instructor", nil)
			Expect(err).To(BeNil())

			copied, err := assets.Get(context.TODO(), destination, name)
			Expect(err).To(BeNil())
			Expect(copied.DisplayName).To(Equal(name))
			Expect(copied.Data).To(Equal([]byte{0xff, 0xd8, 0xff}))
		})

		It("refuses a destination already present in another backend", func() {
			_, err := split.CreateCourse(context.TODO(), source, "instructor", fixtureTree())
			Expect(err).To(BeNil())
			_, err = document.CreateCourse(context.TODO(), destination, "instructor", fixtureTree())
			Expect(err).To(BeNil())

			_, err = mixedStore(modulestore.SplitBackendName).CloneCourse(context.TODO(), source, destination, "instructor", nil)
			Expect(err).To(MatchError(modulestore.ErrDuplicateCourse))
		})

		It("fails when the source does not exist", func() {
			_, err := mixedStore(modulestore.SplitBackendName).CloneCourse(context.TODO(), source, destination, "instructor", nil)
			Expect(err).To(MatchError(modulestore.ErrCourseNotFound))
		})
	})

	Context("delete", func() {
		It("removes the content tree and the assets", func() {
			ms := mixedStore(modulestore.SplitBackendName)
			_, err := split.CreateCourse(context.TODO(), source, "instructor", fixtureTree())
			Expect(err).To(BeNil())
			Expect(assets.Put(context.TODO(), source, contentstore.StaticAsset{
				DisplayName: "syllabus.pdf", Data: []byte("pdf"),
			})).To(BeNil())

			Expect(ms.DeleteCourse(context.TODO(), source)).To(BeNil())

			found, err := ms.HasCourse(context.TODO(), source)
			Expect(err).To(BeNil())
			Expect(found).To(BeFalse())

			remaining, err := assets.ListForCourse(context.TODO(), source)
			Expect(err).To(BeNil())
			Expect(remaining).To(BeEmpty())
		})

		It("returns not found for an unknown course", func() {
			err := mixedStore(modulestore.SplitBackendName).DeleteCourse(context.TODO(), source)
			Expect(err).To(MatchError(modulestore.ErrCourseNotFound))
		})
	})

	Context("import", func() {
		It("loads a course directory into the default backend", func() {
			dir := GinkgoT().TempDir()

			raw, err := json.Marshal(fixtureTree())
			Expect(err).To(BeNil())
			Expect(os.WriteFile(filepath.Join(dir, "course.json"), raw, 0o600)).To(BeNil())

			Expect(os.Mkdir(filepath.Join(dir, "static"), 0o700)).To(BeNil())
			Expect(os.WriteFile(filepath.Join(dir, "static", "logo.png"), []byte("png"), 0o600)).To(BeNil())

			ms := mixedStore(modulestore.SplitBackendName)
			course, err := ms.ImportCourse(context.TODO(), source, "instructor", dir)
			Expect(err).To(BeNil())
			Expect(course.Backend).To(Equal(modulestore.SplitBackendName))
			Expect(course.DisplayName).To(Equal("Intro to CS"))

			imported, err := assets.ListForCourse(context.TODO(), source)
			Expect(err).To(BeNil())
			Expect(imported).To(HaveLen(1))
			Expect(imported[0].DisplayName).To(Equal("logo.png"))
		})
	})
})
