// Package logger provides structured logging backed by zerolog.
//
// Loggers are scoped per component and carry pipeline, node, plugin, and
// session identifiers as structured fields:
//
//	log := logger.WithComponent("dag.executor")
//	log.Info("pipeline completed", logger.Fields(logger.FieldPipelineID, id))
package logger
