// Package orchestration is the entry point for provisioning requests.
//
// A Service routes each request to the workflow registered for the kind of
// its resource reference and runs it in the background. Requests that fail
// validation are reported through the notifier before Submit returns, so
// every accepted task reference sees exactly one Finish or Fail.
//
//	svc := orchestration.NewService(rt, instance.Workflow(), loadbalancer.Workflow())
//	if err := svc.Submit(ctx, req); err != nil {
//		return err
//	}
//	svc.Wait()
package orchestration
