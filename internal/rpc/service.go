// Package rpc defines the booking.v1.BookingService gRPC contract
// (api/booking/v1/booking.proto) without generated code.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "booking.v1.BookingService"

const (
	MethodGetAvailability      = "/" + ServiceName + "/GetAvailability"
	MethodGetBlockedDates      = "/" + ServiceName + "/GetBlockedDates"
	MethodReplaceTimeIntervals = "/" + ServiceName + "/ReplaceTimeIntervals"
	MethodCreateBooking        = "/" + ServiceName + "/CreateBooking"
	MethodUpdateProfile        = "/" + ServiceName + "/UpdateProfile"
)

type BookingServiceServer interface {
	GetAvailability(context.Context, *GetAvailabilityRequest) (*GetAvailabilityResponse, error)
	GetBlockedDates(context.Context, *GetBlockedDatesRequest) (*GetBlockedDatesResponse, error)
	ReplaceTimeIntervals(context.Context, *ReplaceTimeIntervalsRequest) (*ReplaceTimeIntervalsResponse, error)
	CreateBooking(context.Context, *CreateBookingRequest) (*CreateBookingResponse, error)
	UpdateProfile(context.Context, *UpdateProfileRequest) (*UpdateProfileResponse, error)
}

// UnimplementedBookingServiceServer can be embedded for forward compatibility.
type UnimplementedBookingServiceServer struct{}

func (UnimplementedBookingServiceServer) GetAvailability(context.Context, *GetAvailabilityRequest) (*GetAvailabilityResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetAvailability not implemented")
}
func (UnimplementedBookingServiceServer) GetBlockedDates(context.Context, *GetBlockedDatesRequest) (*GetBlockedDatesResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetBlockedDates not implemented")
}
func (UnimplementedBookingServiceServer) ReplaceTimeIntervals(context.Context, *ReplaceTimeIntervalsRequest) (*ReplaceTimeIntervalsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ReplaceTimeIntervals not implemented")
}
func (UnimplementedBookingServiceServer) CreateBooking(context.Context, *CreateBookingRequest) (*CreateBookingResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CreateBooking not implemented")
}
func (UnimplementedBookingServiceServer) UpdateProfile(context.Context, *UpdateProfileRequest) (*UpdateProfileResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method UpdateProfile not implemented")
}

func RegisterBookingServiceServer(s grpc.ServiceRegistrar, srv BookingServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BookingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetAvailability", Handler: unary(MethodGetAvailability, BookingServiceServer.GetAvailability)},
		{MethodName: "GetBlockedDates", Handler: unary(MethodGetBlockedDates, BookingServiceServer.GetBlockedDates)},
		{MethodName: "ReplaceTimeIntervals", Handler: unary(MethodReplaceTimeIntervals, BookingServiceServer.ReplaceTimeIntervals)},
		{MethodName: "CreateBooking", Handler: unary(MethodCreateBooking, BookingServiceServer.CreateBooking)},
		{MethodName: "UpdateProfile", Handler: unary(MethodUpdateProfile, BookingServiceServer.UpdateProfile)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "api/booking/v1/booking.proto",
}

func unary[Req, Resp any](fullMethod string, call func(BookingServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(BookingServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(BookingServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

type BookingServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewBookingServiceClient(cc grpc.ClientConnInterface) *BookingServiceClient {
	return &BookingServiceClient{cc: cc}
}

func (c *BookingServiceClient) GetAvailability(ctx context.Context, in *GetAvailabilityRequest, opts ...grpc.CallOption) (*GetAvailabilityResponse, error) {
	out := new(GetAvailabilityResponse)
	if err := c.cc.Invoke(ctx, MethodGetAvailability, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BookingServiceClient) GetBlockedDates(ctx context.Context, in *GetBlockedDatesRequest, opts ...grpc.CallOption) (*GetBlockedDatesResponse, error) {
	out := new(GetBlockedDatesResponse)
	if err := c.cc.Invoke(ctx, MethodGetBlockedDates, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BookingServiceClient) ReplaceTimeIntervals(ctx context.Context, in *ReplaceTimeIntervalsRequest, opts ...grpc.CallOption) (*ReplaceTimeIntervalsResponse, error) {
	out := new(ReplaceTimeIntervalsResponse)
	if err := c.cc.Invoke(ctx, MethodReplaceTimeIntervals, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BookingServiceClient) CreateBooking(ctx context.Context, in *CreateBookingRequest, opts ...grpc.CallOption) (*CreateBookingResponse, error) {
	out := new(CreateBookingResponse)
	if err := c.cc.Invoke(ctx, MethodCreateBooking, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BookingServiceClient) UpdateProfile(ctx context.Context, in *UpdateProfileRequest, opts ...grpc.CallOption) (*UpdateProfileResponse, error) {
	out := new(UpdateProfileResponse)
	if err := c.cc.Invoke(ctx, MethodUpdateProfile, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
