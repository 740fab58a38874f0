package chat_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/BryanTheLai/stackrag/pkg/chat"
	"github.com/BryanTheLai/stackrag/pkg/stream"
	"github.com/BryanTheLai/stackrag/pkg/tags"
)

var _ = Describe("Turn", func() {
	var (
		reg       *tags.Registry
		refreshes []chat.TurnView
		finalized []chat.TurnView
		turn      *chat.Turn
	)

	BeforeEach(func() {
		reg = tags.Default()
		refreshes = nil
		finalized = nil
		turn = chat.NewTurn(reg,
			chat.WithModel("test-model"),
			chat.WithRefresh(func(v chat.TurnView) { refreshes = append(refreshes, v) }),
			chat.WithFinalize(func(v chat.TurnView) error {
				finalized = append(finalized, v)
				return nil
			}),
		)
	})

	It("should have a generated id", func() {
		Expect(turn.ID()).NotTo(BeEmpty())
		Expect(chat.NewTurn(reg).ID()).NotTo(Equal(turn.ID()))
	})

	Describe("OnChunk", func() {
		It("should refresh only when a segment is produced", func() {
			Expect(turn.OnChunk([]byte("Here is "))).To(Succeed())
			Expect(refreshes).To(HaveLen(1))

			Expect(turn.OnChunk([]byte("<Char"))).To(Succeed())
			Expect(refreshes).To(HaveLen(1))

			Expect(turn.OnChunk([]byte(`tData>{"x":1}</Char`))).To(Succeed())
			Expect(refreshes).To(HaveLen(1))

			Expect(turn.OnChunk([]byte("tData> done"))).To(Succeed())
			Expect(refreshes).To(HaveLen(2))

			Expect(refreshes[1].Segments).To(Equal([]stream.Segment{
				stream.PlainText("Here is "),
				stream.Block(tags.KindChart, `<ChartData>{"x":1}</ChartData>`),
				stream.PlainText(" done"),
			}))
			Expect(refreshes[1].Status).To(Equal(chat.StatusStreaming))
		})

		It("should merge adjacent text in the view", func() {
			turn.OnChunk([]byte("a"))
			turn.OnChunk([]byte("b"))
			turn.OnChunk([]byte("c"))
			Expect(turn.View().Segments).To(Equal([]stream.Segment{stream.PlainText("abc")}))
		})

		It("should hold back a rune split across chunks", func() {
			euro := []byte("€") // three bytes
			turn.OnChunk(append([]byte("cost "), euro[:2]...))
			Expect(turn.View().Raw()).To(Equal("cost "))

			turn.OnChunk(append(euro[2:], []byte("5")...))
			Expect(turn.View().Raw()).To(Equal("cost €5"))
		})

		It("should count chunks and content", func() {
			turn.OnChunk([]byte("abc"))
			turn.OnChunk([]byte("<PDFNav>"))
			stats := turn.View().Stats
			Expect(stats.ChunkCount).To(Equal(2))
			Expect(stats.ContentLength).To(Equal(3))
			Expect(stats.StreamID).To(Equal(turn.ID()))
			Expect(stats.IsComplete).To(BeFalse())
		})
	})

	Describe("OnComplete", func() {
		It("should flush an unterminated block as text and refresh once", func() {
			turn.OnChunk([]byte("pre<ChartData>{\"type\":"))
			Expect(refreshes).To(HaveLen(1))

			Expect(turn.OnComplete("")).To(Succeed())
			Expect(refreshes).To(HaveLen(2))

			final := refreshes[1]
			Expect(final.Status).To(Equal(chat.StatusComplete))
			Expect(final.Segments).To(Equal([]stream.Segment{stream.PlainText("pre<ChartData>{\"type\":")}))
			Expect(final.Stats.IsComplete).To(BeTrue())
			Expect(finalized).To(HaveLen(1))
		})

		It("should refresh after flush even when nothing was pending", func() {
			turn.OnChunk([]byte("done"))
			turn.OnComplete("done")
			Expect(refreshes).To(HaveLen(2))
		})

		It("should mark a turn without text as empty", func() {
			Expect(turn.OnComplete("")).To(Succeed())
			view := turn.View()
			Expect(view.Empty).To(BeTrue())
			Expect(turn.Message().Text()).To(Equal(chat.EmptyTurnText))
		})

		It("should return the finalize error", func() {
			t := chat.NewTurn(reg, chat.WithFinalize(func(chat.TurnView) error {
				return errors.New("disk full")
			}))
			Expect(t.OnComplete("")).To(MatchError("disk full"))
		})

		It("should finalize only once", func() {
			turn.OnComplete("")
			turn.OnComplete("")
			turn.OnError(errors.New("late"))
			Expect(finalized).To(HaveLen(1))
			Expect(refreshes).To(HaveLen(1))
			Expect(turn.View().Status).To(Equal(chat.StatusComplete))
		})

		It("should drop chunks that arrive after the end", func() {
			turn.OnChunk([]byte("a"))
			turn.OnComplete("a")
			Expect(turn.OnChunk([]byte("b"))).To(Succeed())
			Expect(turn.View().Raw()).To(Equal("a"))
		})

		It("should persist the raw text with markers", func() {
			turn.OnChunk([]byte(`See <PDFNav>{"documentId":"d","filename":"f.pdf","page":2}</PDFNav>.`))
			turn.OnComplete("")
			msg := turn.Message()
			Expect(msg.Text()).To(Equal(`See <PDFNav>{"documentId":"d","filename":"f.pdf","page":2}</PDFNav>.`))
			Expect(msg.ModelName).To(Equal("test-model"))
		})
	})

	Describe("OnError", func() {
		It("should flush buffered text before marking the turn errored", func() {
			turn.OnChunk([]byte("partial <PDFNav>{\"page\""))
			turn.OnError(errors.New("connection reset"))

			view := turn.View()
			Expect(view.Status).To(Equal(chat.StatusErrored))
			Expect(view.Err).To(MatchError("connection reset"))
			Expect(view.Raw()).To(Equal("partial <PDFNav>{\"page\""))
			Expect(refreshes).To(HaveLen(2))
			Expect(finalized).To(HaveLen(1))
		})

		It("should persist the error text when nothing streamed", func() {
			turn.OnError(&stream.ServerError{Message: "quota exceeded"})
			Expect(turn.Message().Text()).To(Equal("Stream Error: quota exceeded"))
		})
	})

	Describe("Cancel", func() {
		It("should flush exactly once and mark the turn cancelled", func() {
			turn.OnChunk([]byte("<ChartData>{"))
			turn.Cancel()
			turn.Cancel()

			view := turn.View()
			Expect(view.Status).To(Equal(chat.StatusCancelled))
			Expect(view.Raw()).To(Equal("<ChartData>{"))
			Expect(refreshes).To(HaveLen(1))
		})
	})

	It("should serialize concurrent callbacks", func() {
		t := chat.NewTurn(reg)
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				t.OnChunk([]byte("x"))
			}()
		}
		wg.Wait()
		t.OnComplete("")
		Expect(t.View().Raw()).To(HaveLen(50))
	})
})

var _ = Describe("ErrorText", func() {
	DescribeTable("should describe failures the way the chat shows them",
		func(err error, want string) {
			Expect(chat.ErrorText(err)).To(Equal(want))
		},
		Entry("nil", nil, ""),
		Entry("server error", &stream.ServerError{Message: "boom"}, "Stream Error: boom"),
		Entry("server error without message", &stream.ServerError{}, "Stream Error: Unknown error"),
		Entry("wrapped server error", fmt.Errorf("sse: %w", &stream.ServerError{Message: "x"}), "Stream Error: x"),
		Entry("cancelled", context.Canceled, "Reply cancelled"),
		Entry("network", errors.New("dial tcp: refused"), "Network or stream error: dial tcp: refused"),
	)
})

var _ = Describe("Manager", func() {
	var m *chat.Manager

	BeforeEach(func() {
		m = chat.NewManager(tags.Default())
	})

	It("should start with no active turns", func() {
		Expect(m.Active()).To(BeEmpty())
		_, ok := m.Stats("missing")
		Expect(ok).To(BeFalse())
	})

	It("should track independent turns", func() {
		a := m.Start()
		b := m.Start()
		Expect(m.Active()).To(ConsistOf(a.ID(), b.ID()))

		a.OnChunk([]byte("<ChartData>{"))
		b.OnChunk([]byte("plain"))
		Expect(a.View().Raw()).To(BeEmpty())
		Expect(b.View().Raw()).To(Equal("plain"))

		stats, ok := m.Stats(b.ID())
		Expect(ok).To(BeTrue())
		Expect(stats.ChunkCount).To(Equal(1))
	})

	It("should cancel a streaming turn when finishing it", func() {
		t := m.Start()
		t.OnChunk([]byte("<PDFNav>"))
		m.Finish(t.ID())

		Expect(m.Active()).To(BeEmpty())
		Expect(t.View().Status).To(Equal(chat.StatusCancelled))
		Expect(t.View().Raw()).To(Equal("<PDFNav>"))
	})

	It("should leave a completed turn untouched when finishing it", func() {
		t := m.Start()
		t.OnComplete("")
		m.Finish(t.ID())
		Expect(t.View().Status).To(Equal(chat.StatusComplete))
	})

	It("should cancel everything", func() {
		a := m.Start()
		b := m.Start()
		m.CancelAll()
		Expect(m.Active()).To(BeEmpty())
		Expect(a.View().Status).To(Equal(chat.StatusCancelled))
		Expect(b.View().Status).To(Equal(chat.StatusCancelled))
	})

	It("should tolerate finishing an unknown turn", func() {
		Expect(func() { m.Finish("nope") }).NotTo(Panic())
	})
})
