package blip

// Handler processes a fully-received request. It may build and Send a
// response or error on req itself; if it returns a non-nil error instead,
// the engine synthesizes a BLIP/501 error response on its behalf (unless
// req was sent NoReply, in which case the error is only logged).
type Handler func(req *MessageIn) error

// HandleRequest registers h as the handler for requests whose Profile
// property equals profile, replacing any previous registration.
func (e *Engine) HandleRequest(profile string, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[profile] = h
}

// SetDefaultHandler registers h to handle any request whose Profile has
// no registered handler.
func (e *Engine) SetDefaultHandler(h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.defaultHandler = h
}

func (e *Engine) handlerFor(profile string) Handler {
	e.mu.Lock()
	defer e.mu.Unlock()
	if h, ok := e.handlers[profile]; ok {
		return h
	}
	return e.defaultHandler
}

// dispatch runs the handler for a fully-received request, per §4.8's
// dispatch rules: a handler error becomes a 501, a missing handler
// becomes a 404, neither is sent if the request was NoReply.
func (e *Engine) dispatch(req *MessageIn) {
	h := e.handlerFor(req.Profile())
	if h == nil {
		e.log.warn("no handler for profile %q", req.Profile())
		if !req.noReply {
			e.replyError(req, ErrorDomainBLIP, ErrorCodeNoHandler, "No handler")
		}
		return
	}

	if err := h(req); err != nil {
		e.log.warn("handler for profile %q failed: %v", req.Profile(), err)
		if !req.noReply {
			e.replyError(req, ErrorDomainBLIP, ErrorCodeHandlerFailed, err.Error())
		}
	}
}

func (e *Engine) replyError(req *MessageIn, domain string, code int, message string) {
	b := createErrorResponse(e.sendResponse, req.number, domain, code, message)
	if _, err := b.Send(); err != nil {
		e.log.warn("failed to send error response to #%d: %v", req.number, err)
	}
}
