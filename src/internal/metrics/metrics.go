package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MarksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "readtrack_marks_total",
		Help: "Read tracks written, by kind (forum or topic)",
	}, []string{"kind"})

	CollapsesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "readtrack_collapses_total",
		Help: "Forums whose topic tracks were collapsed into a single forum track",
	})

	PropagationSteps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "readtrack_propagation_steps_total",
		Help: "Ancestor forums visited while propagating read state, by result",
	}, []string{"result"})

	UnreadQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "readtrack_unread_queries_total",
		Help: "Unread lookups served, by kind (forums or topics)",
	}, []string{"kind"})
)

const (
	KindForum  = "forum"
	KindTopic  = "topic"
	KindForums = "forums"
	KindTopics = "topics"

	ResultConsolidated = "consolidated"
	ResultStopped      = "stopped"
)
