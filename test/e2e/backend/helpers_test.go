package backend

import (
	"bytes"
	"encoding/json"
	"net/http"

	. "github.com/onsi/gomega"
)

func getJSON(path string, out any) int {
	resp, err := http.Get(httpBase + path)
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	defer resp.Body.Close()
	if out != nil {
		ExpectWithOffset(1, json.NewDecoder(resp.Body).Decode(out)).To(Succeed())
	}
	return resp.StatusCode
}

func postJSON(path string, in, out any) int {
	body, err := json.Marshal(in)
	ExpectWithOffset(1, err).NotTo(HaveOccurred())

	resp, err := http.Post(httpBase+path, "application/json", bytes.NewReader(body))
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	defer resp.Body.Close()
	if out != nil {
		ExpectWithOffset(1, json.NewDecoder(resp.Body).Decode(out)).To(Succeed())
	}
	return resp.StatusCode
}
