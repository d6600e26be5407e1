package signal

import "net/http"

func (s *Server) Test(req *http.Request) (*http.Response, error) {
	return s.app.Test(req)
}
