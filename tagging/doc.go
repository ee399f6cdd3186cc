// Package tagging labels a food catalog with a text-generation model.
//
// A Runner walks the catalog in batches using a Cursor, asks the generator
// for labels through an Invoker and stores them in a storage.TagRepository.
// Model output is parsed by a Parser, which accepts fragments of the form
// "#label" on a "태그:" line and drops everything else.
//
// In tuning mode every batch first goes through an Optimizer. It alternates
// generation with calls to a judge model that scores the batch and proposes
// a revised template, until a score reaches Config.MinScore or
// Config.MaxEpochs is spent. Revised templates are written through to a
// storage.TemplateRepository so a restarted run picks them up.
//
// # Resuming
//
// Runs are resumable by skip count: the first Config.SkipCount catalog
// records are treated as processed. RunSummary.ResumeOffset and the stored
// core.Checkpoint give the skip count for the next run.
package tagging
