package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/provideplatform/provenance/chain"
	"github.com/provideplatform/provenance/commitment"
	"github.com/provideplatform/provenance/common"
	"github.com/provideplatform/provenance/proof"
	"github.com/provideplatform/provenance/region"
)

func TestAPI(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "provenance api")
}

func testImage(width, height, channels int) *commitment.Image {
	img := commitment.NewImage(width, height, channels)
	for i := range img.Pix {
		img.Pix[i] = byte((i * 7) % 251)
	}
	return img
}

func request(r *gin.Engine, method, path string, params interface{}) *httptest.ResponseRecorder {
	var body []byte
	if params != nil {
		body, _ = json.Marshal(params)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

var _ = Describe("main", func() {
	var r *gin.Engine

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		cfg := common.DefaultConfig()
		cfg.TileSize = 256

		s, err := initServices(context.Background(), cfg)
		Expect(err).NotTo(HaveOccurred())
		r = newRouter(s)
	})

	Describe("status", func() {
		It("responds with no content", func() {
			w := request(r, http.MethodGet, "/status", nil)
			Expect(w.Code).To(Equal(http.StatusNoContent))
		})
	})

	Describe("commitments", func() {
		It("commits content and resolves it by id", func() {
			w := request(r, http.MethodPost, "/api/v1/commitments", map[string]interface{}{
				"content":   []byte("the quick brown fox"),
				"tile_size": 4,
			})
			Expect(w.Code).To(Equal(http.StatusCreated))

			var c commitment.Commitment
			Expect(json.Unmarshal(w.Body.Bytes(), &c)).To(Succeed())
			Expect(c.TileCount).To(Equal(5))

			w = request(r, http.MethodGet, "/api/v1/commitments/"+c.ID, nil)
			Expect(w.Code).To(Equal(http.StatusOK))

			w = request(r, http.MethodGet, "/api/v1/commitments/"+c.ID+"/membership", nil)
			Expect(w.Code).To(Equal(http.StatusOK))
			var membership commitment.MembershipProof
			Expect(json.Unmarshal(w.Body.Bytes(), &membership)).To(Succeed())
			Expect(commitment.VerifyMembership(&membership)).To(BeTrue())
		})

		It("rejects an image whose buffer does not match its shape", func() {
			w := request(r, http.MethodPost, "/api/v1/commitments", map[string]interface{}{
				"image": &commitment.Image{Width: 4, Height: 4, Channels: 3, Pix: []byte{1, 2, 3}},
			})
			Expect(w.Code).To(Equal(http.StatusUnprocessableEntity))
		})

		It("reports unknown commitments as not found", func() {
			w := request(r, http.MethodGet, "/api/v1/commitments/unknown", nil)
			Expect(w.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("proof chains", func() {
		It("generates proofs and appends them to a chain", func() {
			original := testImage(40, 30, 3)

			w := request(r, http.MethodPost, "/api/v1/proofs", map[string]interface{}{
				"original": original,
				"transformation": &proof.Transformation{
					Type:   proof.TransformationCrop,
					Params: map[string]interface{}{"x": 5, "y": 5, "width": 20, "height": 10},
				},
			})
			Expect(w.Code).To(Equal(http.StatusCreated))
			var p proof.Proof
			Expect(json.Unmarshal(w.Body.Bytes(), &p)).To(Succeed())
			Expect(p.Advisory).To(BeFalse())

			w = request(r, http.MethodPost, "/api/v1/proofs/"+p.ID+"/verify", nil)
			Expect(w.Code).To(Equal(http.StatusOK))
			var result proof.Result
			Expect(json.Unmarshal(w.Body.Bytes(), &result)).To(Succeed())
			Expect(result.Valid).To(BeTrue())

			w = request(r, http.MethodPost, "/api/v1/chains", map[string]interface{}{
				"commitment_id": p.InputCommitment.ID,
			})
			Expect(w.Code).To(Equal(http.StatusCreated))
			var c chain.Chain
			Expect(json.Unmarshal(w.Body.Bytes(), &c)).To(Succeed())

			w = request(r, http.MethodPost, "/api/v1/chains/"+c.ID+"/proofs", map[string]interface{}{
				"proof_id": p.ID,
			})
			Expect(w.Code).To(Equal(http.StatusOK))

			// the output no longer matches the head of the chain
			w = request(r, http.MethodPost, "/api/v1/chains/"+c.ID+"/proofs", map[string]interface{}{
				"proof_id": p.ID,
			})
			Expect(w.Code).To(Equal(http.StatusConflict))

			w = request(r, http.MethodGet, "/api/v1/chains/"+c.ID+"/verify", nil)
			Expect(w.Code).To(Equal(http.StatusOK))
			var report chain.Report
			Expect(json.Unmarshal(w.Body.Bytes(), &report)).To(Succeed())
			Expect(report.Valid).To(BeTrue())
			Expect(report.Length).To(Equal(1))

			w = request(r, http.MethodGet, "/api/v1/chains/"+c.ID+"/compact", nil)
			Expect(w.Code).To(Equal(http.StatusOK))
		})
	})

	Describe("regions", func() {
		It("redacts a region and verifies the proof", func() {
			original := testImage(32, 32, 3)

			w := request(r, http.MethodPost, "/api/v1/regions/redact", map[string]interface{}{
				"image":   original,
				"regions": []region.Region{{X: 4, Y: 4, Width: 8, Height: 8}},
				"mode":    "black",
			})
			Expect(w.Code).To(Equal(http.StatusCreated))
			var result region.RedactResult
			Expect(json.Unmarshal(w.Body.Bytes(), &result)).To(Succeed())

			w = request(r, http.MethodPost, "/api/v1/regions/verify", map[string]interface{}{
				"proof":    result.Proof,
				"supplied": &region.Supplied{Redacted: result.Redacted},
			})
			Expect(w.Code).To(Equal(http.StatusOK))
			var verified region.Result
			Expect(json.Unmarshal(w.Body.Bytes(), &verified)).To(Succeed())
			Expect(verified.Valid).To(BeTrue())
		})
	})

	Describe("fraud", func() {
		It("rejects an unknown candidate kind", func() {
			w := request(r, http.MethodPost, "/api/v1/fraud/check", map[string]interface{}{
				"kind":      "unknown",
				"candidate": map[string]interface{}{},
			})
			Expect(w.Code).To(Equal(http.StatusUnprocessableEntity))
		})
	})
})
