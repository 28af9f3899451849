package httpapi

import (
	"net/http"

	"github.com/menosai/menos/internal/domain"
	"github.com/menosai/menos/internal/graphstore"
)

const graphSnapshotLimit = 500

type graphNode struct {
	ID    string `json:"id"`
	Kind  string `json:"kind"` // "content" or "entity"
	Label string `json:"label"`
}

type graphEdgeView struct {
	ContentID string `json:"content_id"`
	EntityID  string `json:"entity_id"`
	EdgeType  string `json:"edge_type"`
}

type graphView struct {
	Nodes []graphNode     `json:"nodes"`
	Edges []graphEdgeView `json:"edges"`
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	content, entities, edges, err := s.store.GraphSnapshot(r.Context(), graphSnapshotLimit)
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, buildGraphView(content, entities, edges))
}

func (s *Server) handleGraphNeighborhood(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	depth := queryInt(r, "depth", 1)
	if depth < 1 {
		depth = 1
	}
	if depth > 3 {
		depth = 3
	}

	content, entities, edges, err := s.store.Neighborhood(r.Context(), id, depth)
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, buildGraphView(content, entities, edges))
}

func buildGraphView(content []domain.Content, entities []domain.Entity, edges []graphstore.GraphEdge) graphView {
	nodes := make([]graphNode, 0, len(content)+len(entities))
	for _, c := range content {
		label := c.Title
		if label == "" {
			label = c.ID
		}
		nodes = append(nodes, graphNode{ID: c.ID, Kind: "content", Label: label})
	}
	for _, e := range entities {
		nodes = append(nodes, graphNode{ID: e.ID, Kind: "entity", Label: e.Name})
	}

	views := make([]graphEdgeView, len(edges))
	for i, e := range edges {
		views[i] = graphEdgeView{ContentID: e.ContentID, EntityID: e.EntityID, EdgeType: e.EdgeType}
	}
	return graphView{Nodes: nodes, Edges: views}
}
