package events

import (
	"bytes"
	"context"
	"sync"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("producer", Ordered, func() {
	Context("write", func() {
		It("drains the buffer to the writer", func() {
			w := newTestWriter()
			ep := NewEventProducer(w)
			defer ep.Close()

			err := ep.Write(context.TODO(), RerunMessageKind, bytes.NewReader([]byte("msg1")))
			Expect(err).To(BeNil())

			err = ep.Write(context.TODO(), RerunMessageKind, bytes.NewReader([]byte("msg2")))
			Expect(err).To(BeNil())

			Eventually(w.Count).Should(Equal(2))
			Expect(w.Get(0).Type()).To(Equal(RerunMessageKind))
			Expect(w.Get(0).Source()).To(Equal(eventSource))
		})

		It("routes events to the configured topic", func() {
			w := newTestWriter()
			ep := NewEventProducer(w, WithOutputTopic("studio.rerun.events"))
			defer ep.Close()

			err := ep.Write(context.TODO(), RerunMessageKind, bytes.NewReader([]byte("msg")))
			Expect(err).To(BeNil())

			Eventually(w.Count).Should(Equal(1))
			Expect(w.Topics()).To(Equal([]string{"studio.rerun.events"}))
		})
	})
})

type testwriter struct {
	lock     sync.Mutex
	messages []cloudevents.Event
	topics   []string
}

func newTestWriter() *testwriter {
	return &testwriter{}
}

func (t *testwriter) Write(_ context.Context, topic string, e cloudevents.Event) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.messages = append(t.messages, e)
	t.topics = append(t.topics, topic)
	return nil
}

func (t *testwriter) Close(_ context.Context) error {
	return nil
}

func (t *testwriter) Count() int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return len(t.messages)
}

func (t *testwriter) Get(i int) cloudevents.Event {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.messages[i]
}

func (t *testwriter) Topics() []string {
	t.lock.Lock()
	defer t.lock.Unlock()
	return append([]string(nil), t.topics...)
}
