package vm

import "github.com/tliron/commonlog"

// Loggers are fetched on use so that a backend selected by the embedding
// program after package initialization still takes effect.

func dispatchLog() commonlog.Logger { return commonlog.GetLogger("corevm.dispatch") }

func scopeLog() commonlog.Logger { return commonlog.GetLogger("corevm.scope") }

func traceLog() commonlog.Logger { return commonlog.GetLogger("corevm.trace") }

const debugLevel = commonlog.Debug
